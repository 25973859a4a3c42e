// Package session contains domain-level types for the gateway's
// authentication/session lifecycle. It is pure and free of
// framework/adapter concerns.
package session

import (
	"strings"

	"golang.org/x/oauth2"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Avatar is the profile image reference returned by the commerce API.
type Avatar struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// UserProfile is the cached, denormalized profile of the signed-in customer.
// The upstream API identifies users by either "_id" or "id" on the wire;
// adapters canonicalize into ID before a profile reaches this package.
type UserProfile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Role        Role    `json:"role"`
	Phone       string  `json:"phone,omitempty"`
	Gender      string  `json:"gender,omitempty"`
	DateOfBirth string  `json:"dateOfBirth,omitempty"`
	Avatar      *Avatar `json:"avatar,omitempty"`
	IsVerified  bool    `json:"isVerified"`
	IsActive    bool    `json:"isActive"`
}

// IsAdmin returns true if the profile carries the admin role.
func (p UserProfile) IsAdmin() bool { return p.Role == RoleAdmin }

// ProfilePatch is a shallow partial update of a UserProfile.
// Nil fields are left untouched.
type ProfilePatch struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Avatar      *Avatar `json:"avatar,omitempty"`
}

// Merge returns a copy of the profile with non-nil patch fields applied.
func (p UserProfile) Merge(patch ProfilePatch) UserProfile {
	out := p
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Email != nil {
		out.Email = *patch.Email
	}
	if patch.Phone != nil {
		out.Phone = *patch.Phone
	}
	if patch.Gender != nil {
		out.Gender = *patch.Gender
	}
	if patch.DateOfBirth != nil {
		out.DateOfBirth = *patch.DateOfBirth
	}
	if patch.Avatar != nil {
		out.Avatar = patch.Avatar
	}
	return out
}

// Record is the durable per-browser-session entity the gateway persists:
// the bearer token pair plus the cached profile. ID is an opaque gateway
// session identifier (random URL-safe string).
type Record struct {
	ID    string        `json:"id"`
	Token *oauth2.Token `json:"token"`
	User  *UserProfile  `json:"user"`
}

// AccessToken returns the stored access token, or "" when none is held.
func (r Record) AccessToken() string {
	if r.Token == nil {
		return ""
	}
	return r.Token.AccessToken
}

// RefreshToken returns the stored refresh token, or "" when none is held.
func (r Record) RefreshToken() string {
	if r.Token == nil {
		return ""
	}
	return r.Token.RefreshToken
}

// Authenticated derives the authenticated state: a profile is cached, an
// access token is held, and the token passes the supplied validity check.
// The state is never stored, only derived.
func (r Record) Authenticated(valid func(token string) bool) bool {
	if r.User == nil || r.User.ID == "" {
		return false
	}
	access := r.AccessToken()
	if access == "" || IsPlaceholderToken(access) {
		return false
	}
	return valid != nil && valid(access)
}

// IsPlaceholderToken reports whether a stored token value is one of the
// corrupt placeholder strings that historically leaked into storage when a
// missing value was stringified.
func IsPlaceholderToken(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "undefined":
		return true
	}
	return false
}

// ApplyDefaults fills the permissive defaults the upstream API omits:
// role defaults to "user", and both isVerified and isActive default to true
// when the server leaves them out. Adapters pass presence flags for the
// boolean fields, which cannot distinguish absent from false on their own.
func (p *UserProfile) ApplyDefaults(verifiedPresent, activePresent bool) {
	if p.Role == "" {
		p.Role = RoleUser
	}
	if !verifiedPresent {
		p.IsVerified = true
	}
	if !activePresent {
		p.IsActive = true
	}
}
