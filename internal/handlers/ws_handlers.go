package handlers

import (
	"net/http"

	"github.com/ARDEV04/Personal-file-manager/internal/auth"
	"github.com/ARDEV04/Personal-file-manager/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs subscribes a browser to the change feed. With tokens set, the caller must
// pass a valid ?auth_token.
func ServeWs(hub *ws.Hub, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, username := "anonymous", "anonymous"
		if tokens != nil {
			tokenStr := r.URL.Query().Get("auth_token")
			if tokenStr == "" {
				http.Error(w, "Missing auth_token query parameter", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}
			userID, username = claims.UserID, claims.Username
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade websocket connection")
			return
		}

		client := ws.NewClient(hub, conn, userID, username)
		select {
		case hub.Register <- client:
		case <-hub.Stopped():
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
