package idtoken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// DefaultRole is assumed when a token carries no user_type claim.
const DefaultRole = "pdm"

// RolePartner marks users affiliated with a partner organisation.
const RolePartner = "partner"

// Claims is the decoded payload of an identity token. Custom claims set by
// the backend are optional pointers; use the accessor methods, which apply
// the defaults, rather than reading them directly.
type Claims struct {
	gojwt.RegisteredClaims

	AuthTime      int64    `json:"auth_time,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Name          string   `json:"name,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	Provider      Provider `json:"firebase"`

	UserType    *string `json:"user_type,omitempty"`
	PartnerID   *int64  `json:"partner_id,omitempty"`
	PartnerName *string `json:"partner_name,omitempty"`

	// UnparsedPartnerID holds a partner_id that is not an integer. PartnerID
	// is nil in that case.
	UnparsedPartnerID string `json:"-"`
}

// Provider is the "firebase" claim.
type Provider struct {
	SignInProvider string `json:"sign_in_provider,omitempty"`
}

// UnmarshalJSON accepts partner_id as a JSON number or a numeric string.
// Any other value leaves PartnerID nil and is kept in UnparsedPartnerID;
// the rest of the claims still decode.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	aux := struct {
		*plain
		PartnerID json.RawMessage `json:"partner_id"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.PartnerID = nil
	c.UnparsedPartnerID = ""
	raw := bytes.TrimSpace(aux.PartnerID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			c.UnparsedPartnerID = string(raw)
			return nil
		}
		if s == "" {
			return nil
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		c.UnparsedPartnerID = s
		return nil
	}
	c.PartnerID = &id
	return nil
}

// UID is the provider's stable user id.
func (c *Claims) UID() string { return c.Subject }

// HasUserType reports whether the role claim has been assigned.
func (c *Claims) HasUserType() bool {
	return c.UserType != nil && *c.UserType != ""
}

// Role returns user_type as issued, or DefaultRole when it is missing.
func (c *Claims) Role() string {
	if !c.HasUserType() {
		return DefaultRole
	}
	return *c.UserType
}

// IsPartner reports whether the claims identify a partner user, either by
// role or by carrying any partner affiliation.
func (c *Claims) IsPartner() bool {
	return c.Role() == RolePartner || c.PartnerID != nil
}

// Partner returns the partner name or an empty string.
func (c *Claims) Partner() string {
	if c.PartnerName == nil {
		return ""
	}
	return *c.PartnerName
}

// Decode reads claims from a token without checking its signature. It is
// meant for the holder of a token who only needs to inspect what it carries.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}
