package allocation

import (
	"context"

	"carbon-market/marketplace/marketplace-backend/internal/users"
)

// AuditorSource lists user ids by role. users.Repository satisfies it.
type AuditorSource interface {
	ListIDsByRole(ctx context.Context, role users.Role) ([]int64, error)
}

// Pool is a read-only view over the users holding the auditor role. It never caches:
// every Fetch reflects the store at call time.
type Pool struct {
	source AuditorSource
}

func NewPool(source AuditorSource) *Pool {
	return &Pool{source: source}
}

// Fetch returns the ids of every auditor, or an empty slice when there are none.
func (p *Pool) Fetch(ctx context.Context) ([]int64, error) {
	ids, err := p.source.ListIDsByRole(ctx, users.RoleAuditor)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
