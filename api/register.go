package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/gateway"
)

// Deps bundles everything the route handlers need.
type Deps struct {
	Store         TodoStore
	Engine        Orderer
	Accounts      Accounts
	Hub           *gateway.Hub
	Limiter       *RedisLimiter
	Logger        *log.Logger
	CookieTTL     time.Duration
	SecureCookies bool
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.Use(securityHeaders())
	e.GET("/healthz", healthz())
	e.GET("/ws", serveWS(d.Hub, d.Accounts, d.Logger))

	authGroup := e.Group("/api/auth")
	limited := d.Limiter.Middleware(d.Logger)
	authGroup.POST("/register", postRegister(d.Accounts, d.Logger, d.CookieTTL, d.SecureCookies), limited)
	authGroup.POST("/login", postLogin(d.Accounts, d.Logger, d.CookieTTL, d.SecureCookies), limited)
	authGroup.POST("/refresh", postRefresh(d.Accounts, d.Logger, d.CookieTTL, d.SecureCookies), limited)

	authed := requireAuth(d.Accounts, d.Logger)
	authGroup.POST("/logout", postLogout(d.Accounts, d.Logger, d.SecureCookies), authed)
	authGroup.POST("/logout-all", postLogoutAll(d.Accounts, d.Logger, d.SecureCookies), authed)
	authGroup.GET("/me", getMe(), authed)
	authGroup.PUT("/me", putMe(d.Accounts, d.Logger), authed)
	authGroup.DELETE("/me", deleteMe(d.Accounts, d.Logger, d.SecureCookies), authed)

	todos := e.Group("/api/todos", authed)
	todos.GET("", getTodos(d.Store, d.Logger))
	todos.POST("", postTodo(d.Store, d.Engine, d.Hub, d.Logger))
	todos.DELETE("", deleteTodosBulk(d.Store, d.Engine, d.Hub, d.Logger))
	todos.POST("/reorder", postReorder(d.Engine, d.Hub, d.Logger))
	todos.PATCH("/bulk-update", patchBulkUpdate(d.Store, d.Engine, d.Hub, d.Logger))
	todos.POST("/normalize", postNormalize(d.Engine, d.Logger))
	todos.GET("/:id", getTodo(d.Store, d.Logger))
	todos.PUT("/:id", putTodo(d.Store, d.Engine, d.Hub, d.Logger))
	todos.DELETE("/:id", deleteTodo(d.Store, d.Engine, d.Hub, d.Logger))
	todos.PATCH("/:id/toggle", patchToggle(d.Store, d.Hub, d.Logger))
	todos.PATCH("/:id/archive", patchArchive(d.Store, d.Engine, d.Hub, d.Logger))
	todos.PATCH("/:id/position", patchPosition(d.Store, d.Engine, d.Hub, d.Logger))
	todos.POST("/:id/subtasks", postSubtask(d.Store, d.Hub, d.Logger))
	todos.PATCH("/:id/subtasks/:sid/toggle", patchSubtaskToggle(d.Store, d.Hub, d.Logger))
	todos.DELETE("/:id/subtasks/:sid", deleteSubtask(d.Store, d.Hub, d.Logger))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}
