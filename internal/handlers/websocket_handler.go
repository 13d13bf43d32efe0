package handlers

import (
	"net/http"

	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"
)

// WebSocketHandler registers the connection with the dashboard hub and keeps
// it open until the client goes away. Clients only receive events; anything
// they send is discarded.
func WebSocketHandler(manager *wsnotify.WebSocketManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsnotify.Upgrader().Upgrade(w, r, nil)
		if err != nil {
			utils.LogWarning("Falha no upgrade do WebSocket: %v", err)
			return
		}
		manager.AddClient(conn)
		utils.LogDebug("Cliente WebSocket conectado (%d ativos)", manager.ClientCount())
		defer func() {
			manager.RemoveClient(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
