package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"followup-bot/internal/handlers"
	"followup-bot/internal/services"
	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WhatsApp session, the automation loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := loadConfig()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	hub := wsnotify.Manager
	connectionManager := services.NewConnectionManager(hub)
	ingestor := services.NewIngestor(st.contacts, hub, cfg.DedupWindow)
	whatsapp := services.NewWhatsAppService(cfg, connectionManager, ingestor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := whatsapp.Connect(ctx); err != nil {
		// O agendador pula ciclos enquanto o canal não estiver pronto
		utils.LogError("Erro ao iniciar WhatsApp: %v", err)
		connectionManager.SetDisconnected(err.Error())
	}
	defer whatsapp.Disconnect()

	generatorFactory := services.GeneratorFactory(services.GeneratorConfig{
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})
	scheduler := services.NewScheduler(st.contacts, st.settings, whatsapp, generatorFactory, hub, services.SchedulerPolicy{
		TickInterval:    cfg.TickInterval,
		NudgeAfter:      cfg.NudgeAfter,
		NoResponseAfter: cfg.NoResponseAfter,
	})
	go scheduler.Run(ctx)

	contactService := services.NewContactService(st.contacts, st.settings, whatsapp, hub)
	httpHandler := handlers.NewHTTPHandler(contactService, connectionManager)

	docsURL := fmt.Sprintf("http://localhost:%s/api/v1/swagger/swagger.json", cfg.Port)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(httpHandler, hub, docsURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Canal para sinais de interrupção
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		utils.LogInfo("Servidor rodando em http://localhost:%s", cfg.Port)
		utils.LogInfo("Swagger UI disponível em http://localhost:%s/api/v1/swagger-ui/", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		utils.LogInfo("Encerrando...")
	case err := <-serverErr:
		return fmt.Errorf("error starting server: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogError("Erro ao encerrar servidor HTTP: %v", err)
	}

	utils.LogInfo("Servidor encerrado")
	return nil
}
