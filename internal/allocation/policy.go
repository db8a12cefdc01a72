// Package allocation decides how many auditors a credit needs and picks them.
package allocation

const (
	// TonsPerStep is the carbon amount that adds AuditorsPerStep to the requirement.
	TonsPerStep = 500
	// AuditorsPerStep is added for every full TonsPerStep.
	AuditorsPerStep = 2
	// BaselineAuditors is required for any amount below TonsPerStep.
	BaselineAuditors = 3
)

// RequiredAuditors returns the minimum auditor count for amount tons of carbon:
// floor(amount/500)*2 + 3. Callers validate that amount is non-negative.
func RequiredAuditors(amount int64) int {
	return int(amount/TonsPerStep)*AuditorsPerStep + BaselineAuditors
}
