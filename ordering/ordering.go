// Package ordering maintains the per-user, per-category ordinal sequence of
// todos. Within one (owner, category, archived=false) partition the order
// values must stay unique and contiguous from 1; the engine serializes every
// multi-step rewrite through the store's transaction primitive so concurrent
// callers never observe duplicate or gapped ordinals.
package ordering

import (
	"context"
	"sort"

	"todotrack-api/domain"
)

// Store is the persistence surface the engine needs. The *Store from the
// storage package satisfies it; tests use an in-memory fake.
type Store interface {
	TodosByIDs(ctx context.Context, userID string, ids []string) ([]domain.Todo, error)
	ActiveTodos(ctx context.Context, userID, category string) ([]domain.Todo, error)
	MaxOrder(ctx context.Context, userID, category string) (int, error)
	SetOrders(ctx context.Context, userID string, orders map[string]int) error
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine applies ordinal mutations through a Store.
type Engine struct {
	store Store
}

// NewEngine creates an Engine backed by store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Reorder assigns ordinal index+1 to each id in the given sequence. Every id
// must belong to userID and the set must match exactly what the store holds
// for those ids; any mismatch aborts before a single write happens. The
// rewrite itself is one transaction, so no partial reorder is observable.
func (e *Engine) Reorder(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return domain.ValidationError("no todo ids provided")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return domain.ValidationError("duplicate todo id in reorder")
		}
		seen[id] = struct{}{}
	}

	return e.store.InTransaction(ctx, func(ctx context.Context) error {
		owned, err := e.store.TodosByIDs(ctx, userID, ids)
		if err != nil {
			return err
		}
		if len(owned) != len(ids) {
			return domain.ValidationError("todo not found or not owned")
		}
		orders := make(map[string]int, len(ids))
		for i, id := range ids {
			orders[id] = i + 1
		}
		return e.store.SetOrders(ctx, userID, orders)
	})
}

// MoveToPosition moves one todo to newPosition (1-based) within its category
// partition and rewrites every displaced ordinal. Positions past the end of
// the list append; that is defined behavior, not an error. Moving a todo to
// its current position is a no-op.
func (e *Engine) MoveToPosition(ctx context.Context, todoID, userID string, newPosition int) error {
	if newPosition < 1 {
		return domain.ValidationError("position must be at least 1")
	}

	return e.store.InTransaction(ctx, func(ctx context.Context) error {
		owned, err := e.store.TodosByIDs(ctx, userID, []string{todoID})
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			return domain.NotFoundError("todo not found")
		}
		target := owned[0]
		if target.Order == newPosition {
			return nil
		}

		siblings, err := e.store.ActiveTodos(ctx, userID, target.Category)
		if err != nil {
			return err
		}

		sequence := make([]string, 0, len(siblings))
		for _, t := range siblings {
			if t.ID != todoID {
				sequence = append(sequence, t.ID)
			}
		}
		insertAt := newPosition - 1
		if insertAt > len(sequence) {
			insertAt = len(sequence)
		}
		sequence = append(sequence, "")
		copy(sequence[insertAt+1:], sequence[insertAt:])
		sequence[insertAt] = todoID

		orders := make(map[string]int, len(sequence))
		for i, id := range sequence {
			orders[id] = i + 1
		}
		return e.store.SetOrders(ctx, userID, orders)
	})
}

// NextOrderValue returns 1 + the highest ordinal among the user's
// non-archived todos, optionally category-scoped, or 1 when none exist.
// This is a plain read, not a transaction: two concurrent creations can
// observe the same value and produce a duplicate ordinal, which Normalize
// repairs. Callers that need strict uniqueness must serialize externally.
func (e *Engine) NextOrderValue(ctx context.Context, userID, category string) (int, error) {
	max, err := e.store.MaxOrder(ctx, userID, category)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Normalize resequences non-archived todos to 1..N within each category
// partition, stable-sorted by (order, createdAt) so duplicate ordinals from
// the NextOrderValue race resolve deterministically by creation time. An
// empty category repairs every partition the user has. This is the manual
// repair path; nothing invokes it automatically per request.
func (e *Engine) Normalize(ctx context.Context, userID, category string) error {
	return e.store.InTransaction(ctx, func(ctx context.Context) error {
		todos, err := e.store.ActiveTodos(ctx, userID, category)
		if err != nil {
			return err
		}

		partitions := make(map[string][]domain.Todo)
		for _, t := range todos {
			partitions[t.Category] = append(partitions[t.Category], t)
		}

		orders := make(map[string]int)
		for _, part := range partitions {
			sort.SliceStable(part, func(i, j int) bool {
				if part[i].Order != part[j].Order {
					return part[i].Order < part[j].Order
				}
				return part[i].CreatedAt.Before(part[j].CreatedAt)
			})
			for i, t := range part {
				if t.Order != i+1 {
					orders[t.ID] = i + 1
				}
			}
		}
		if len(orders) == 0 {
			return nil
		}
		return e.store.SetOrders(ctx, userID, orders)
	})
}
