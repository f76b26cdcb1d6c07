package domain

import (
	"fmt"
	"time"
)

// RefreshTokenRecord is one live refresh token stored on a user. The token
// string itself is the signed JWT; expiry is fixed at issue time.
type RefreshTokenRecord struct {
	Token     string    `bson:"token" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"-"`
	ExpiresAt time.Time `bson:"expiresAt" json:"-"`
}

// User is an account record. Users are never hard-deleted: Deactivate salts
// the unique fields so the username and email become reusable.
type User struct {
	ID            string               `bson:"_id" json:"id"`
	Username      string               `bson:"username" json:"username"`
	Email         string               `bson:"email" json:"email"`
	PasswordHash  string               `bson:"passwordHash" json:"-"`
	Active        bool                 `bson:"active" json:"-"`
	RefreshTokens []RefreshTokenRecord `bson:"refreshTokens" json:"-"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	LastLogin     time.Time            `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
}

// MaxRefreshTokensDefault caps the live refresh-token list; oldest entries
// are evicted first.
const MaxRefreshTokensDefault = 5

// AppendRefreshToken adds rec and trims the list to the newest max entries.
// The stored order is append order, so trimming keeps the tail.
func (u *User) AppendRefreshToken(rec RefreshTokenRecord, max int) {
	if max <= 0 {
		max = MaxRefreshTokensDefault
	}
	u.RefreshTokens = append(u.RefreshTokens, rec)
	if len(u.RefreshTokens) > max {
		u.RefreshTokens = u.RefreshTokens[len(u.RefreshTokens)-max:]
	}
}

// RemoveRefreshToken deletes the record matching token. It reports whether
// the token was present.
func (u *User) RemoveRefreshToken(token string) bool {
	for i, rec := range u.RefreshTokens {
		if rec.Token == token {
			u.RefreshTokens = append(u.RefreshTokens[:i], u.RefreshTokens[i+1:]...)
			return true
		}
	}
	return false
}

// HasRefreshToken reports whether token is in the stored list.
func (u *User) HasRefreshToken(token string) bool {
	for _, rec := range u.RefreshTokens {
		if rec.Token == token {
			return true
		}
	}
	return false
}

// Deactivate soft-deletes the account. The unique fields are salted with the
// user ID so a new account can reuse them, and all sessions are revoked.
func (u *User) Deactivate() {
	u.Active = false
	u.Username = fmt.Sprintf("%s_deleted_%s", u.Username, u.ID)
	u.Email = fmt.Sprintf("%s_deleted_%s", u.Email, u.ID)
	u.RefreshTokens = nil
}
