package workflows

// Credit lifecycle states. A credit is never deleted, only transitioned.
const (
	CreditActive  = "ACTIVE"
	CreditExpired = "EXPIRED"
)

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an explicit transition table.
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewCreditLifecycle returns the transitions a carbon credit may take.
func NewCreditLifecycle() *StateMachine {
	return NewStateMachine(map[string][]string{
		CreditActive:  {CreditExpired},
		CreditExpired: {},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
