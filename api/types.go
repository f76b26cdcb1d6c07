package api

import (
	"context"
	"time"

	"todotrack-api/auth"
	"todotrack-api/domain"
	"todotrack-api/storage"
)

// TodoStore abstracts todo persistence for handlers.
type TodoStore interface {
	InsertTodo(ctx context.Context, todo domain.Todo) error
	TodoByID(ctx context.Context, userID, id string) (*domain.Todo, error)
	Todos(ctx context.Context, userID string, f storage.TodoFilter) ([]domain.Todo, error)
	TodosByIDs(ctx context.Context, userID string, ids []string) ([]domain.Todo, error)
	ReplaceTodo(ctx context.Context, todo domain.Todo) error
	DeleteTodo(ctx context.Context, userID, id string) error
	DeleteTodos(ctx context.Context, userID string, ids []string) (int64, error)
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Orderer is the ordering engine surface used by handlers.
type Orderer interface {
	Reorder(ctx context.Context, userID string, ids []string) error
	MoveToPosition(ctx context.Context, todoID, userID string, newPosition int) error
	NextOrderValue(ctx context.Context, userID, category string) (int, error)
	Normalize(ctx context.Context, userID, category string) error
}

// Accounts is the account service surface used by handlers and middleware.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Result, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (*domain.User, time.Time, error)
	UpdateProfile(ctx context.Context, userID string, username, email *string) (*domain.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// Broadcaster mirrors mutations to a user's open socket sessions. The
// gateway hub satisfies it.
type Broadcaster interface {
	Emit(userID, event string, payload any)
}
