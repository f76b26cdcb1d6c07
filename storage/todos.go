package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todotrack-api/domain"
)

// TodoFilter narrows a listing. Nil boolean pointers mean "any"; Archived
// defaults to false at the handler layer so archived items only show up when
// asked for.
type TodoFilter struct {
	Category  string
	Priority  string
	Tag       string
	Completed *bool
	Archived  *bool
}

func buildTodoFilter(userID string, f TodoFilter) bson.M {
	filter := bson.M{"userId": userID}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}
	if f.Completed != nil {
		filter["completed"] = *f.Completed
	}
	if f.Archived != nil {
		filter["archived"] = *f.Archived
	}
	return filter
}

// InsertTodo persists a new todo.
func (s *Store) InsertTodo(ctx context.Context, todo domain.Todo) error {
	if _, err := s.todos.InsertOne(ctx, todo); err != nil {
		return domain.InternalError("insert todo", err)
	}
	return nil
}

// TodoByID fetches one todo scoped to its owner. Records owned by someone
// else are indistinguishable from absent ones.
func (s *Store) TodoByID(ctx context.Context, userID, id string) (*domain.Todo, error) {
	var todo domain.Todo
	err := s.todos.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&todo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("todo not found")
		}
		return nil, domain.InternalError("find todo", err)
	}
	return &todo, nil
}

// Todos lists the owner's todos matching f, sorted by category then order.
func (s *Store) Todos(ctx context.Context, userID string, f TodoFilter) ([]domain.Todo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "order", Value: 1}})
	cur, err := s.todos.Find(ctx, buildTodoFilter(userID, f), opts)
	if err != nil {
		return nil, domain.InternalError("list todos", err)
	}
	todos := []domain.Todo{}
	if err := cur.All(ctx, &todos); err != nil {
		return nil, domain.InternalError("decode todos", err)
	}
	return todos, nil
}

// ReplaceTodo overwrites the stored record, keyed on (id, owner).
func (s *Store) ReplaceTodo(ctx context.Context, todo domain.Todo) error {
	res, err := s.todos.ReplaceOne(ctx, bson.M{"_id": todo.ID, "userId": todo.UserID}, todo)
	if err != nil {
		return domain.InternalError("replace todo", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("todo not found")
	}
	return nil
}

// DeleteTodo removes one owned todo.
func (s *Store) DeleteTodo(ctx context.Context, userID, id string) error {
	res, err := s.todos.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return domain.InternalError("delete todo", err)
	}
	if res.DeletedCount == 0 {
		return domain.NotFoundError("todo not found")
	}
	return nil
}

// DeleteTodos removes the given owned todos and returns how many matched.
func (s *Store) DeleteTodos(ctx context.Context, userID string, ids []string) (int64, error) {
	res, err := s.todos.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "userId": userID})
	if err != nil {
		return 0, domain.InternalError("delete todos", err)
	}
	return res.DeletedCount, nil
}

// --- ordering-engine store surface ---

// TodosByIDs fetches the owned todos among ids, in no particular order.
func (s *Store) TodosByIDs(ctx context.Context, userID string, ids []string) ([]domain.Todo, error) {
	cur, err := s.todos.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "userId": userID})
	if err != nil {
		return nil, domain.InternalError("find todos by ids", err)
	}
	todos := []domain.Todo{}
	if err := cur.All(ctx, &todos); err != nil {
		return nil, domain.InternalError("decode todos", err)
	}
	return todos, nil
}

// ActiveTodos lists non-archived todos, optionally scoped to one category,
// sorted by (order, createdAt) so resequencing is deterministic under
// duplicate ordinals.
func (s *Store) ActiveTodos(ctx context.Context, userID, category string) ([]domain.Todo, error) {
	filter := bson.M{"userId": userID, "archived": false}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "createdAt", Value: 1}})
	cur, err := s.todos.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.InternalError("list active todos", err)
	}
	todos := []domain.Todo{}
	if err := cur.All(ctx, &todos); err != nil {
		return nil, domain.InternalError("decode todos", err)
	}
	return todos, nil
}

// MaxOrder returns the highest order value among the user's non-archived
// todos, optionally category-scoped, or 0 when none exist.
func (s *Store) MaxOrder(ctx context.Context, userID, category string) (int, error) {
	filter := bson.M{"userId": userID, "archived": false}
	if category != "" {
		filter["category"] = category
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "order", Value: -1}})
	var top domain.Todo
	err := s.todos.FindOne(ctx, filter, opts).Decode(&top)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, domain.InternalError("max order", err)
	}
	return top.Order, nil
}

// SetOrders bulk-writes new ordinal values, each update conditioned on
// (id, owner). Run inside InTransaction for all-or-nothing semantics.
func (s *Store) SetOrders(ctx context.Context, userID string, orders map[string]int) error {
	if len(orders) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(orders))
	for id, ord := range orders {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id, "userId": userID}).
			SetUpdate(bson.M{"$set": bson.M{"order": ord}}))
	}
	if _, err := s.todos.BulkWrite(ctx, models); err != nil {
		return domain.InternalError("set orders", err)
	}
	return nil
}
