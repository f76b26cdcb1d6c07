// Package auth implements account lifecycle and the refresh-token rotation
// protocol on top of the token service and the user store.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"todotrack-api/domain"
	"todotrack-api/token"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, user domain.User) error
	UserByID(ctx context.Context, id string) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetRefreshTokens(ctx context.Context, id string, tokens []domain.RefreshTokenRecord) error
	UpdateProfile(ctx context.Context, id string, username, email *string) error
	DeactivateUser(ctx context.Context, user *domain.User) error
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator mints user identifiers; injected so tests stay deterministic.
type IDGenerator func() string

// Service handles registration, login, rotation and logout.
type Service struct {
	store            Store
	tokens           *token.Service
	logger           *log.Logger
	newID            IDGenerator
	maxRefreshTokens int
	bcryptCost       int
	now              func() time.Time
}

// NewService builds a Service.
func NewService(store Store, tokens *token.Service, logger *log.Logger, newID IDGenerator, maxRefreshTokens, bcryptCost int) *Service {
	if maxRefreshTokens <= 0 {
		maxRefreshTokens = domain.MaxRefreshTokensDefault
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:            store,
		tokens:           tokens,
		logger:           logger,
		newID:            newID,
		maxRefreshTokens: maxRefreshTokens,
		bcryptCost:       bcryptCost,
		now:              time.Now,
	}
}

// Result bundles the authenticated user with a fresh token pair.
type Result struct {
	User *domain.User
	Pair token.Pair
}

// Register validates the input, creates the account and issues the first
// token pair. No user record is written when validation fails.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := domain.ValidateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, domain.InternalError("hash password", err)
	}

	now := s.now()
	user := domain.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
		LastLogin:    now,
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.InternalError("issue tokens", err)
	}
	user.AppendRefreshToken(s.refreshRecord(pair.RefreshToken, now), s.maxRefreshTokens)

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &Result{User: &user, Pair: pair}, nil
}

// Login verifies credentials and issues a fresh pair. Unknown emails and bad
// passwords produce the same AuthError.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.AuthError("invalid credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.AuthError("invalid credentials")
	}

	now := s.now()
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.InternalError("issue tokens", err)
	}
	user.AppendRefreshToken(s.refreshRecord(pair.RefreshToken, now), s.maxRefreshTokens)
	user.LastLogin = now

	if err := s.store.SetRefreshTokens(ctx, user.ID, user.RefreshTokens); err != nil {
		return nil, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	return &Result{User: user, Pair: pair}, nil
}

// Refresh rotates a refresh token: the presented token must verify and still
// be in the stored list. A token that verifies but is no longer stored was
// already rotated once, which signals reuse, so every stored token for that
// user is wiped, forcing re-authentication on all devices.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, domain.AuthError("invalid refresh token")
	}

	var result *Result
	var reused bool
	err = s.store.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.store.UserByID(ctx, userID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return domain.AuthError("invalid refresh token")
			}
			return err
		}
		if !user.Active {
			return domain.AuthError("invalid refresh token")
		}

		if !user.RemoveRefreshToken(refreshToken) {
			// A returned error aborts the transaction and would roll the
			// wipe back, so the closure commits with nil and the rejection
			// happens after.
			s.logger.WithFields(log.Fields{"user_id": userID}).Warn("refresh token reuse detected, revoking all sessions")
			reused = true
			return s.store.SetRefreshTokens(ctx, userID, nil)
		}

		pair, err := s.tokens.Issue(userID)
		if err != nil {
			return domain.InternalError("issue tokens", err)
		}
		user.AppendRefreshToken(s.refreshRecord(pair.RefreshToken, s.now()), s.maxRefreshTokens)
		if err := s.store.SetRefreshTokens(ctx, userID, user.RefreshTokens); err != nil {
			return err
		}
		result = &Result{User: user, Pair: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return nil, domain.AuthError("invalid refresh token")
	}
	return result, nil
}

// Logout removes one stored refresh token. A token that is already gone is
// not an error.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	return s.store.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.store.UserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.RemoveRefreshToken(refreshToken) {
			return nil
		}
		return s.store.SetRefreshTokens(ctx, userID, user.RefreshTokens)
	})
}

// LogoutAll wipes every stored refresh token for the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.store.SetRefreshTokens(ctx, userID, nil)
}

// Authenticate verifies an access token and confirms the account is still
// active. Used by the HTTP middleware and the socket handshake.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, time.Time, error) {
	userID, expiry, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, time.Time{}, domain.AuthError("token expired")
		}
		return nil, time.Time{}, domain.AuthError("invalid token")
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, time.Time{}, domain.AuthError("invalid token")
		}
		return nil, time.Time{}, err
	}
	if !user.Active {
		return nil, time.Time{}, domain.AuthError("invalid token")
	}
	return user, expiry, nil
}

// UpdateProfile changes username and/or email after validation.
func (s *Service) UpdateProfile(ctx context.Context, userID string, username, email *string) (*domain.User, error) {
	if username != nil {
		trimmed := strings.TrimSpace(*username)
		username = &trimmed
	}
	if email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*email))
		email = &lowered
	}
	if username == nil && email == nil {
		return nil, domain.ValidationError("nothing to update")
	}
	if username != nil {
		if err := domain.ValidateUsername(*username); err != nil {
			return nil, err
		}
	}
	if email != nil {
		if err := domain.ValidateEmail(*email); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateProfile(ctx, userID, username, email); err != nil {
		return nil, err
	}
	return s.store.UserByID(ctx, userID)
}

// DeleteAccount soft-deletes the user and revokes every session.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active {
		return domain.NotFoundError("user not found")
	}
	return s.store.DeactivateUser(ctx, user)
}

func (s *Service) refreshRecord(tok string, at time.Time) domain.RefreshTokenRecord {
	return domain.RefreshTokenRecord{
		Token:     tok,
		CreatedAt: at,
		ExpiresAt: at.Add(s.tokens.RefreshTTL()),
	}
}
