package ordering

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todotrack-api/domain"
)

// fakeStore keeps todos in memory. InTransaction serializes callers with a
// mutex, mirroring the serialization the real store gets from mongo
// transactions.
type fakeStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	todos map[string]domain.Todo
}

func newFakeStore() *fakeStore {
	return &fakeStore{todos: make(map[string]domain.Todo)}
}

func (f *fakeStore) add(t domain.Todo) {
	f.mu.Lock()
	f.todos[t.ID] = t
	f.mu.Unlock()
}

func (f *fakeStore) TodosByIDs(_ context.Context, userID string, ids []string) ([]domain.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Todo{}
	for _, id := range ids {
		if t, ok := f.todos[id]; ok && t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveTodos(_ context.Context, userID, category string) ([]domain.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Todo{}
	for _, t := range f.todos {
		if t.UserID != userID || t.Archived {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStore) MaxOrder(_ context.Context, userID, category string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, t := range f.todos {
		if t.UserID != userID || t.Archived {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		if t.Order > max {
			max = t.Order
		}
	}
	return max, nil
}

func (f *fakeStore) SetOrders(_ context.Context, userID string, orders map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ord := range orders {
		if t, ok := f.todos[id]; ok && t.UserID == userID {
			t.Order = ord
			f.todos[id] = t
		}
	}
	return nil
}

func (f *fakeStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) ordersIn(userID, category string) map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for id, t := range f.todos {
		if t.UserID == userID && t.Category == category && !t.Archived {
			out[id] = t.Order
		}
	}
	return out
}

func seedTodos(store *fakeStore, userID, category string, n int) []string {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := category + "-" + string(rune('a'+i))
		store.add(domain.Todo{
			ID:        id,
			UserID:    userID,
			Category:  category,
			Order:     i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		ids[i] = id
	}
	return ids
}

func TestReorderAssignsContiguousOrdinals(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 4)
	engine := NewEngine(store)

	want := []string{ids[2], ids[0], ids[3], ids[1]}
	require.NoError(t, engine.Reorder(context.Background(), "u1", want))

	orders := store.ordersIn("u1", "work")
	for i, id := range want {
		assert.Equal(t, i+1, orders[id], "id %s", id)
	}
}

func TestReorderRejectsForeignAndMissingIDs(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 3)
	store.add(domain.Todo{ID: "other", UserID: "u2", Category: "work", Order: 1})
	engine := NewEngine(store)

	err := engine.Reorder(context.Background(), "u1", []string{ids[0], ids[1], "other"})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	err = engine.Reorder(context.Background(), "u1", []string{ids[0], "missing", ids[2]})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	// Nothing moved.
	orders := store.ordersIn("u1", "work")
	for i, id := range ids {
		assert.Equal(t, i+1, orders[id])
	}
}

func TestReorderRejectsDuplicatesAndEmpty(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 2)
	engine := NewEngine(store)

	err := engine.Reorder(context.Background(), "u1", []string{ids[0], ids[0]})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	err = engine.Reorder(context.Background(), "u1", nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestMoveToPositionScenario(t *testing.T) {
	// Orders [1,2,3] in "work"; moving the first todo to position 3 shifts
	// the others down: old-2 -> 1, old-3 -> 2, old-1 -> 3.
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 3)
	engine := NewEngine(store)

	require.NoError(t, engine.MoveToPosition(context.Background(), ids[0], "u1", 3))

	orders := store.ordersIn("u1", "work")
	assert.Equal(t, 1, orders[ids[1]])
	assert.Equal(t, 2, orders[ids[2]])
	assert.Equal(t, 3, orders[ids[0]])
}

func TestMoveToPositionIdempotent(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 4)
	engine := NewEngine(store)

	require.NoError(t, engine.MoveToPosition(context.Background(), ids[3], "u1", 2))
	first := store.ordersIn("u1", "work")

	require.NoError(t, engine.MoveToPosition(context.Background(), ids[3], "u1", first[ids[3]]))
	assert.Equal(t, first, store.ordersIn("u1", "work"))
}

func TestMoveToPositionClampsPastEnd(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 3)
	engine := NewEngine(store)

	require.NoError(t, engine.MoveToPosition(context.Background(), ids[0], "u1", 99))

	orders := store.ordersIn("u1", "work")
	assert.Equal(t, 3, orders[ids[0]])
	assert.Equal(t, 1, orders[ids[1]])
	assert.Equal(t, 2, orders[ids[2]])
}

func TestMoveToPositionUnknownTodo(t *testing.T) {
	store := newFakeStore()
	seedTodos(store, "u1", "work", 2)
	engine := NewEngine(store)

	err := engine.MoveToPosition(context.Background(), "missing", "u1", 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestMoveToPositionIgnoresOtherCategories(t *testing.T) {
	store := newFakeStore()
	work := seedTodos(store, "u1", "work", 3)
	home := seedTodos(store, "u1", "home", 2)
	engine := NewEngine(store)

	require.NoError(t, engine.MoveToPosition(context.Background(), work[2], "u1", 1))

	homeOrders := store.ordersIn("u1", "home")
	assert.Equal(t, 1, homeOrders[home[0]])
	assert.Equal(t, 2, homeOrders[home[1]])
}

func TestNextOrderValue(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	next, err := engine.NextOrderValue(ctx, "u1", "work")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	seedTodos(store, "u1", "work", 3)
	next, err = engine.NextOrderValue(ctx, "u1", "work")
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	// A new todo created with that value lands at the tail of its category.
	store.add(domain.Todo{ID: "tail", UserID: "u1", Category: "work", Order: next, CreatedAt: time.Now()})
	active, err := store.ActiveTodos(ctx, "u1", "work")
	require.NoError(t, err)
	assert.Equal(t, "tail", active[len(active)-1].ID)
}

func TestNormalizeRepairsDuplicatesByCreationTime(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.add(domain.Todo{ID: "a", UserID: "u1", Category: "work", Order: 2, CreatedAt: base})
	store.add(domain.Todo{ID: "b", UserID: "u1", Category: "work", Order: 2, CreatedAt: base.Add(time.Minute)})
	store.add(domain.Todo{ID: "c", UserID: "u1", Category: "work", Order: 5, CreatedAt: base.Add(2 * time.Minute)})
	engine := NewEngine(store)

	require.NoError(t, engine.Normalize(context.Background(), "u1", "work"))

	orders := store.ordersIn("u1", "work")
	assert.Equal(t, 1, orders["a"])
	assert.Equal(t, 2, orders["b"])
	assert.Equal(t, 3, orders["c"])
}

func TestNormalizeAllCategoriesKeepsPartitionsIndependent(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.add(domain.Todo{ID: "w1", UserID: "u1", Category: "work", Order: 3, CreatedAt: base})
	store.add(domain.Todo{ID: "w2", UserID: "u1", Category: "work", Order: 7, CreatedAt: base.Add(time.Minute)})
	store.add(domain.Todo{ID: "h1", UserID: "u1", Category: "home", Order: 4, CreatedAt: base})
	engine := NewEngine(store)

	require.NoError(t, engine.Normalize(context.Background(), "u1", ""))

	work := store.ordersIn("u1", "work")
	home := store.ordersIn("u1", "home")
	assert.Equal(t, map[string]int{"w1": 1, "w2": 2}, work)
	assert.Equal(t, map[string]int{"h1": 1}, home)
}

func TestNormalizeSkipsArchived(t *testing.T) {
	store := newFakeStore()
	store.add(domain.Todo{ID: "a", UserID: "u1", Category: "work", Order: 5, CreatedAt: time.Now()})
	store.add(domain.Todo{ID: "z", UserID: "u1", Category: "work", Order: 1, Archived: true, CreatedAt: time.Now()})
	engine := NewEngine(store)

	require.NoError(t, engine.Normalize(context.Background(), "u1", "work"))

	store.mu.Lock()
	archivedOrder := store.todos["z"].Order
	store.mu.Unlock()
	assert.Equal(t, 1, store.ordersIn("u1", "work")["a"])
	assert.Equal(t, 1, archivedOrder)
}

func TestConcurrentReordersOneWinner(t *testing.T) {
	store := newFakeStore()
	ids := seedTodos(store, "u1", "work", 5)
	engine := NewEngine(store)

	permA := []string{ids[4], ids[3], ids[2], ids[1], ids[0]}
	permB := []string{ids[1], ids[3], ids[0], ids[4], ids[2]}

	var wg sync.WaitGroup
	for _, perm := range [][]string{permA, permB} {
		wg.Add(1)
		go func(p []string) {
			defer wg.Done()
			assert.NoError(t, engine.Reorder(context.Background(), "u1", p))
		}(perm)
	}
	wg.Wait()

	orders := store.ordersIn("u1", "work")

	// No duplicate or gapped ordinals.
	seen := map[int]bool{}
	for _, ord := range orders {
		assert.False(t, seen[ord], "duplicate ordinal %d", ord)
		assert.GreaterOrEqual(t, ord, 1)
		assert.LessOrEqual(t, ord, len(ids))
		seen[ord] = true
	}

	// The final state is exactly one of the two submitted orderings.
	matches := func(p []string) bool {
		for i, id := range p {
			if orders[id] != i+1 {
				return false
			}
		}
		return true
	}
	assert.True(t, matches(permA) || matches(permB))
}
