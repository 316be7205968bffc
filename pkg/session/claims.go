package session

import (
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
)

// Role values carried by sessions.
const (
	RolePDM     = idtoken.DefaultRole
	RolePartner = idtoken.RolePartner
)

// Claims is the payload of a SessionToken.
type Claims struct {
	gojwt.RegisteredClaims

	Email       string  `json:"email"`
	Role        string  `json:"role"`
	PartnerID   *int64  `json:"partner_id,omitempty"`
	PartnerName *string `json:"partner_name,omitempty"`
	Name        string  `json:"name,omitempty"`
	Picture     string  `json:"picture,omitempty"`
}

// UserID is the identity provider's user id.
func (c *Claims) UserID() string { return c.Subject }

// IsPartner reports whether the session belongs to a partner user: either
// the role says so or a partner affiliation is present.
func (c *Claims) IsPartner() bool {
	return c.Role == RolePartner || c.PartnerID != nil
}

// Partner returns the partner name or "".
func (c *Claims) Partner() string {
	if c.PartnerName == nil {
		return ""
	}
	return *c.PartnerName
}
