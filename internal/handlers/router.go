package handlers

import (
	"net/http"

	"followup-bot/internal/wsnotify"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter mounts the API under /api/v1 and wraps it with CORS.
func NewRouter(h *HTTPHandler, hub *wsnotify.WebSocketManager, docsURL string) http.Handler {
	router := mux.NewRouter().PathPrefix("/api/v1").Subrouter()

	// Rotas de autenticação e status
	router.HandleFunc("/status", h.GetStatus).Methods("GET", "OPTIONS")
	router.HandleFunc("/qrcode-base64", h.GetQRCodeBase64).Methods("GET", "OPTIONS")

	// Rotas de configuração
	router.HandleFunc("/settings", h.GetSettings).Methods("GET", "OPTIONS")
	router.HandleFunc("/settings", h.SaveSettings).Methods("POST", "OPTIONS")
	router.HandleFunc("/autopilot", h.SetGlobalAutomation).Methods("POST", "OPTIONS")

	// Rotas de contatos
	router.HandleFunc("/contacts", h.ListContacts).Methods("GET", "OPTIONS")
	router.HandleFunc("/contacts", h.CreateContact).Methods("POST", "OPTIONS")
	router.HandleFunc("/contacts/{id}", h.GetContact).Methods("GET", "OPTIONS")
	router.HandleFunc("/contacts/{id}", h.UpdateContact).Methods("PUT", "OPTIONS")
	router.HandleFunc("/contacts/{id}", h.DeleteContact).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/contacts/{id}/send", h.SendMessage).Methods("POST", "OPTIONS")
	router.HandleFunc("/contacts/{id}/ack", h.AcknowledgeReply).Methods("POST", "OPTIONS")
	router.HandleFunc("/contacts/{id}/autopilot", h.SetContactAutopilot).Methods("POST", "OPTIONS")

	// Rota WebSocket
	router.HandleFunc("/ws", WebSocketHandler(hub))

	// Serve os arquivos estáticos do Swagger
	fs := http.FileServer(http.Dir("./docs"))
	router.PathPrefix("/swagger/").Handler(http.StripPrefix("/api/v1/swagger/", fs))
	router.PathPrefix("/swagger-ui/").Handler(httpSwagger.Handler(
		httpSwagger.URL(docsURL),
		httpSwagger.DeepLinking(true),
	))

	mainRouter := mux.NewRouter()
	mainRouter.PathPrefix("/api/v1").Handler(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(mainRouter)
}
