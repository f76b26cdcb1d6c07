package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/gateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS completes the socket handshake: the access token comes from the
// Authorization header or a token query parameter, and a failed verification
// rejects the connection before it is registered with the hub.
func serveWS(hub *gateway.Hub, accounts Accounts, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			if qt := c.QueryParam("token"); qt != "" {
				header = "Bearer " + qt
			}
		}
		tok, err := bearerToken(header)
		if err != nil {
			return respondError(c, logger, err)
		}
		user, expiry, err := accounts.Authenticate(c.Request().Context(), tok)
		if err != nil {
			return respondError(c, logger, err)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade has already written its own error response.
			logger.Debugf("websocket upgrade: %v", err)
			return nil
		}
		hub.HandleConn(c.Request().Context(), conn, user.ID, expiry)
		return nil
	}
}
