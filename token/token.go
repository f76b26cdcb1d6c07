// Package token issues and verifies the two credential classes used by the
// service: short-lived access tokens and longer-lived refresh tokens. Both
// are HS256 JWTs signed with distinct secrets; refresh tokens additionally
// carry a type discriminator so one class can never be presented as the
// other.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const refreshTokenType = "refresh"

var (
	// ErrExpired is returned when a token verified fine apart from its
	// expiry claim.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for malformed tokens, bad signatures, wrong
	// signing methods and missing claims.
	ErrInvalid = errors.New("token invalid")
)

// Claims carried by both token classes.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	TokenType string `json:"typ,omitempty"`
}

// Pair bundles one access token with one refresh token.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Service signs and verifies tokens. It holds no mutable state; all methods
// are safe for concurrent use.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	parser *jwt.Parser
	now    func() time.Time
}

// New creates a Service. The two secrets must be distinct so an access token
// can never pass refresh verification or vice versa.
func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		parser:        jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		now:           time.Now,
	}
}

// Issue signs a fresh access/refresh pair for userID. The two signatures are
// fully independent.
func (s *Service) Issue(userID string) (Pair, error) {
	access, err := s.sign(userID, "", s.accessSecret, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(userID, refreshTokenType, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshTTL exposes the refresh lifetime so callers can align stored
// records and cookies with the signed expiry.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// VerifyAccess validates an access token and returns the subject and the
// signed expiry. Expired tokens fail with ErrExpired, everything else with
// ErrInvalid.
func (s *Service) VerifyAccess(tokenStr string) (string, time.Time, error) {
	claims, err := s.verify(tokenStr, s.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	if claims.TokenType == refreshTokenType {
		return "", time.Time{}, ErrInvalid
	}
	return claims.UserID, claims.ExpiresAt.Time, nil
}

// VerifyRefresh validates a refresh token and returns the subject. The
// expired/invalid distinction mirrors VerifyAccess; callers that want a
// single opaque failure collapse the two themselves.
func (s *Service) VerifyRefresh(tokenStr string) (string, error) {
	claims, err := s.verify(tokenStr, s.refreshSecret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != refreshTokenType {
		return "", ErrInvalid
	}
	return claims.UserID, nil
}

// sign builds one token. The jti claim keeps two same-second issuances for
// the same user from colliding into identical token strings.
func (s *Service) sign(userID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Service) verify(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !parsed.Valid || claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalid
	}
	return claims, nil
}
