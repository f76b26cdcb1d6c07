package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/domain"
	"todotrack-api/gateway"
	"todotrack-api/storage"
)

type createTodoRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Category     string     `json:"category"`
	Tags         []string   `json:"tags"`
	DueDate      *time.Time `json:"dueDate"`
	ReminderDate *time.Time `json:"reminderDate"`
	Order        *int       `json:"order"`
}

type todosResponse struct {
	Todos []domain.Todo `json:"todos"`
}

type positionRequest struct {
	Position int `json:"position"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type bulkUpdateRequest struct {
	IDs     []string           `json:"ids"`
	Changes domain.TodoChanges `json:"changes"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type normalizeRequest struct {
	Category string `json:"category"`
}

type subtaskRequest struct {
	Title string `json:"title"`
}

func getTodos(store TodoStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := listMetrics{start: time.Now()}
		defer func() {
			metrics.log(logger, c.Response().Status, err)
		}()

		user := currentUser(c)
		filter, ferr := todoFilterFromQuery(c)
		if ferr != nil {
			metrics.errorStage = "invalid_filter"
			err = respondError(c, logger, ferr)
			return err
		}
		metrics.filtered = filter.Category != "" || filter.Priority != "" || filter.Tag != "" ||
			filter.Completed != nil || filter.Archived != nil

		fetchStart := time.Now()
		todos, ferr := store.Todos(c.Request().Context(), user.ID, filter)
		metrics.fetch = time.Since(fetchStart)
		if ferr != nil {
			metrics.errorStage = "storage"
			err = respondError(c, logger, ferr)
			return err
		}
		metrics.returned = len(todos)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, todosResponse{Todos: todos})
		metrics.encode = time.Since(encodeStart)
		if err != nil {
			metrics.errorStage = "encode_response"
		}
		return err
	}
}

// todoFilterFromQuery parses the listing filters. Archived defaults to
// false so archived records only show up when asked for explicitly.
func todoFilterFromQuery(c echo.Context) (storage.TodoFilter, error) {
	filter := storage.TodoFilter{
		Category: c.QueryParam("category"),
		Priority: c.QueryParam("priority"),
		Tag:      c.QueryParam("tag"),
	}
	if filter.Priority != "" && !domain.ValidPriority(filter.Priority) {
		return storage.TodoFilter{}, domain.ValidationError("priority must be low, medium or high")
	}
	if raw := c.QueryParam("completed"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return storage.TodoFilter{}, domain.ValidationError("completed must be true or false")
		}
		filter.Completed = &val
	}
	archived := false
	if raw := c.QueryParam("archived"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return storage.TodoFilter{}, domain.ValidationError("archived must be true or false")
		}
		archived = val
	}
	filter.Archived = &archived
	return filter, nil
}

func postTodo(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTodoRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)
		ctx := c.Request().Context()
		now := time.Now()

		todo := domain.Todo{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			Title:        req.Title,
			Description:  req.Description,
			Priority:     req.Priority,
			Category:     req.Category,
			Tags:         domain.NormalizeTags(req.Tags),
			DueDate:      req.DueDate,
			ReminderDate: req.ReminderDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if todo.Priority == "" {
			todo.Priority = domain.PriorityMedium
		}
		if todo.Category == "" {
			todo.Category = domain.DefaultCategory
		}
		if err := domain.ValidateTodo(todo); err != nil {
			return respondError(c, logger, err)
		}

		if req.Order != nil && *req.Order > 0 {
			todo.Order = *req.Order
		} else {
			next, err := engine.NextOrderValue(ctx, user.ID, todo.Category)
			if err != nil {
				return respondError(c, logger, err)
			}
			todo.Order = next
		}

		if err := store.InsertTodo(ctx, todo); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoCreated, todo)
		return c.JSON(http.StatusCreated, todo)
	}
}

func getTodo(store TodoStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		todo, err := store.TodoByID(c.Request().Context(), user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, todo)
	}
}

func putTodo(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var changes domain.TodoChanges
		if err := decodeBody(c, &changes); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}

		oldCategory := todo.Category
		updated := domain.ApplyTransition(*todo, changes, time.Now())
		if err := domain.ValidateTodo(updated); err != nil {
			return respondError(c, logger, err)
		}

		// A category move leaves the old partition and appends to the new one.
		if updated.Category != oldCategory {
			next, err := engine.NextOrderValue(ctx, user.ID, updated.Category)
			if err != nil {
				return respondError(c, logger, err)
			}
			updated.Order = next
		}

		if err := store.ReplaceTodo(ctx, updated); err != nil {
			return respondError(c, logger, err)
		}
		if updated.Category != oldCategory {
			if err := engine.Normalize(ctx, user.ID, oldCategory); err != nil {
				logger.Warnf("normalize %q after category move: %v", oldCategory, err)
			}
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, updated)
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTodo(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		ctx := c.Request().Context()
		id := c.Param("id")

		todo, err := store.TodoByID(ctx, user.ID, id)
		if err != nil {
			return respondError(c, logger, err)
		}
		if err := store.DeleteTodo(ctx, user.ID, id); err != nil {
			return respondError(c, logger, err)
		}
		if err := engine.Normalize(ctx, user.ID, todo.Category); err != nil {
			logger.Warnf("normalize %q after delete: %v", todo.Category, err)
		}
		hub.Emit(user.ID, gateway.EventTodoDeleted, map[string]string{"id": id, "userId": user.ID})
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTodosBulk(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req bulkDeleteRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		if len(req.IDs) == 0 {
			return respondError(c, logger, domain.ValidationError("no todo ids provided"))
		}
		user := currentUser(c)
		ctx := c.Request().Context()

		// All-or-nothing: ownership of the whole set is checked inside the
		// same transaction as the delete.
		err := store.InTransaction(ctx, func(ctx context.Context) error {
			owned, err := store.TodosByIDs(ctx, user.ID, req.IDs)
			if err != nil {
				return err
			}
			if len(owned) != len(req.IDs) {
				return domain.ValidationError("todo not found or not owned")
			}
			_, err = store.DeleteTodos(ctx, user.ID, req.IDs)
			return err
		})
		if err != nil {
			return respondError(c, logger, err)
		}
		if err := engine.Normalize(ctx, user.ID, ""); err != nil {
			logger.Warnf("normalize after bulk delete: %v", err)
		}
		hub.Emit(user.ID, gateway.EventTodosBulkUpdated, map[string]any{"deletedIds": req.IDs, "userId": user.ID})
		return c.NoContent(http.StatusNoContent)
	}
}

func patchToggle(store TodoStore, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		completed := !todo.Completed
		updated := domain.ApplyTransition(*todo, domain.TodoChanges{Completed: &completed}, time.Now())
		if err := store.ReplaceTodo(ctx, updated); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, updated)
		return c.JSON(http.StatusOK, updated)
	}
}

func patchArchive(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		archived := !todo.Archived
		updated := domain.ApplyTransition(*todo, domain.TodoChanges{Archived: &archived}, time.Now())

		// Unarchiving re-enters the partition at the tail.
		if !updated.Archived {
			next, err := engine.NextOrderValue(ctx, user.ID, updated.Category)
			if err != nil {
				return respondError(c, logger, err)
			}
			updated.Order = next
		}

		if err := store.ReplaceTodo(ctx, updated); err != nil {
			return respondError(c, logger, err)
		}
		if updated.Archived {
			if err := engine.Normalize(ctx, user.ID, updated.Category); err != nil {
				logger.Warnf("normalize %q after archive: %v", updated.Category, err)
			}
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, updated)
		return c.JSON(http.StatusOK, updated)
	}
}

func patchPosition(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req positionRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)
		ctx := c.Request().Context()
		id := c.Param("id")

		if err := engine.MoveToPosition(ctx, id, user.ID, req.Position); err != nil {
			return respondError(c, logger, err)
		}
		todo, err := store.TodoByID(ctx, user.ID, id)
		if err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, todo)
		return c.JSON(http.StatusOK, todo)
	}
}

func postReorder(engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)

		if err := engine.Reorder(c.Request().Context(), user.ID, req.IDs); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodosBulkUpdated, map[string]any{"ids": req.IDs, "userId": user.ID})
		return c.NoContent(http.StatusNoContent)
	}
}

func patchBulkUpdate(store TodoStore, engine Orderer, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req bulkUpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		if len(req.IDs) == 0 {
			return respondError(c, logger, domain.ValidationError("no todo ids provided"))
		}
		user := currentUser(c)
		ctx := c.Request().Context()
		now := time.Now()

		var updated []domain.Todo
		vacated := make(map[string]struct{})
		err := store.InTransaction(ctx, func(ctx context.Context) error {
			owned, err := store.TodosByIDs(ctx, user.ID, req.IDs)
			if err != nil {
				return err
			}
			if len(owned) != len(req.IDs) {
				return domain.ValidationError("todo not found or not owned")
			}
			updated = updated[:0]
			for cat := range vacated {
				delete(vacated, cat)
			}
			for _, todo := range owned {
				next := domain.ApplyTransition(todo, req.Changes, now)
				if err := domain.ValidateTodo(next); err != nil {
					return err
				}
				// A todo entering a partition (category move or unarchive)
				// re-enters at the tail; a todo leaving one vacates an
				// ordinal that Normalize reclaims after the commit.
				enters := !next.Archived && (todo.Archived || next.Category != todo.Category)
				leaves := !todo.Archived && (next.Archived || next.Category != todo.Category)
				if enters {
					ord, err := engine.NextOrderValue(ctx, user.ID, next.Category)
					if err != nil {
						return err
					}
					next.Order = ord
				}
				if leaves {
					vacated[todo.Category] = struct{}{}
				}
				if err := store.ReplaceTodo(ctx, next); err != nil {
					return err
				}
				updated = append(updated, next)
			}
			return nil
		})
		if err != nil {
			return respondError(c, logger, err)
		}
		for cat := range vacated {
			if err := engine.Normalize(ctx, user.ID, cat); err != nil {
				logger.Warnf("normalize %q after bulk update: %v", cat, err)
			}
		}
		hub.Emit(user.ID, gateway.EventTodosBulkUpdated, todosResponse{Todos: updated})
		return c.JSON(http.StatusOK, todosResponse{Todos: updated})
	}
}

// postNormalize is the manual repair endpoint for ordinal sequences.
func postNormalize(engine Orderer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req normalizeRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)
		if err := engine.Normalize(c.Request().Context(), user.ID, req.Category); err != nil {
			return respondError(c, logger, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postSubtask(store TodoStore, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req subtaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		if err := domain.ValidateSubtaskTitle(req.Title); err != nil {
			return respondError(c, logger, err)
		}
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		now := time.Now()
		todo.Subtasks = append(todo.Subtasks, domain.Subtask{
			ID:        uuid.NewString(),
			Title:     req.Title,
			CreatedAt: now,
		})
		todo.UpdatedAt = now
		if err := store.ReplaceTodo(ctx, *todo); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, todo)
		return c.JSON(http.StatusCreated, todo)
	}
}

func patchSubtaskToggle(store TodoStore, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		sid := c.Param("sid")
		found := false
		for i := range todo.Subtasks {
			if todo.Subtasks[i].ID == sid {
				todo.Subtasks[i].Completed = !todo.Subtasks[i].Completed
				found = true
				break
			}
		}
		if !found {
			return respondError(c, logger, domain.NotFoundError("subtask not found"))
		}
		todo.UpdatedAt = time.Now()
		if err := store.ReplaceTodo(ctx, *todo); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, todo)
		return c.JSON(http.StatusOK, todo)
	}
}

func deleteSubtask(store TodoStore, hub Broadcaster, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		ctx := c.Request().Context()

		todo, err := store.TodoByID(ctx, user.ID, c.Param("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		sid := c.Param("sid")
		idx := -1
		for i := range todo.Subtasks {
			if todo.Subtasks[i].ID == sid {
				idx = i
				break
			}
		}
		if idx < 0 {
			return respondError(c, logger, domain.NotFoundError("subtask not found"))
		}
		todo.Subtasks = append(todo.Subtasks[:idx], todo.Subtasks[idx+1:]...)
		todo.UpdatedAt = time.Now()
		if err := store.ReplaceTodo(ctx, *todo); err != nil {
			return respondError(c, logger, err)
		}
		hub.Emit(user.ID, gateway.EventTodoUpdated, todo)
		return c.JSON(http.StatusOK, todo)
	}
}
