package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"todotrack-api/domain"
)

// CreateUser inserts a new user record. Duplicate usernames or emails
// surface as ConflictError via the unique indexes.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ConflictError("username or email already taken")
		}
		return domain.InternalError("create user", err)
	}
	return nil
}

// UserByID fetches a user regardless of active flag; callers that require a
// live account check Active themselves.
func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

// UserByEmail fetches an active user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"email": email, "active": true})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("user not found")
		}
		return nil, domain.InternalError("find user", err)
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last successful login.
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return domain.InternalError("update last login", err)
	}
	return nil
}

// SetRefreshTokens overwrites the stored refresh-token list. Rotation and
// breach wipes go through this inside a transaction so read-modify-write
// stays atomic.
func (s *Store) SetRefreshTokens(ctx context.Context, id string, tokens []domain.RefreshTokenRecord) error {
	if tokens == nil {
		tokens = []domain.RefreshTokenRecord{}
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"refreshTokens": tokens}})
	if err != nil {
		return domain.InternalError("set refresh tokens", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("user not found")
	}
	return nil
}

// UpdateProfile changes username and/or email. Nil pointers leave the field
// unchanged.
func (s *Store) UpdateProfile(ctx context.Context, id string, username, email *string) error {
	set := bson.M{}
	if username != nil {
		set["username"] = *username
	}
	if email != nil {
		set["email"] = *email
	}
	if len(set) == 0 {
		return nil
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id, "active": true}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ConflictError("username or email already taken")
		}
		return domain.InternalError("update profile", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("user not found")
	}
	return nil
}

// DeactivateUser soft-deletes the account: the record keeps its ID but the
// unique fields are salted and every session is revoked.
func (s *Store) DeactivateUser(ctx context.Context, user *domain.User) error {
	user.Deactivate()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"active":        false,
		"username":      user.Username,
		"email":         user.Email,
		"refreshTokens": []domain.RefreshTokenRecord{},
	}})
	if err != nil {
		return domain.InternalError("deactivate user", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("user not found")
	}
	return nil
}
