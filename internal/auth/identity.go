package auth

import (
	"github.com/gin-gonic/gin"

	"carbon-market/marketplace/marketplace-backend/internal/users"
)

const identityKey = "identity"

// Identity is the verified caller behind a request.
type Identity struct {
	Username string     `json:"username"`
	Role     users.Role `json:"role"`
}

// SetIdentity stores id on the request context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the identity placed by Authenticate.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
