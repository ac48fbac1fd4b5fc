package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfchat/internal/api"
	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/gateway"
	"github.com/dgallion1/pdfchat/internal/layout"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"github.com/dgallion1/pdfchat/internal/render"
	"github.com/dgallion1/pdfchat/internal/workspace"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	path := os.Getenv("PDFCHAT_CONFIG")
	if path == "" {
		path = "pdfchat.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.APIKey() == "" {
		log.Warn("no server-side api key configured; requests must supply one", "provider", cfg.Provider)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}
	gw := gateway.New(gateway.Options{
		Model:       cfg.Model,
		Instruction: cfg.Instruction,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		APIKey:      cfg.APIKey(),
	}, func(apiKey string) (llm.Provider, error) {
		return llm.NewProvider(cfg.Provider, apiKey, cfg.BaseURL, upstream)
	}, log)

	// Renderers are built once and shared by every session.
	wsOpts := workspace.Options{
		Streamer:   chat.StreamerFunc(gw.Pipe),
		Parser:     &pdfdoc.Parser{FallbackPdftotext: true},
		Markdown:   render.NewMarkdown("github"),
		PageWidth:  float64(cfg.PageWidth),
		Layout:     layout.DefaultOptions(),
		Credential: gw.ServerCredential(),
	}
	if err := wsOpts.Validate(); err != nil {
		log.Error("invalid workspace options", "error", err)
		os.Exit(1)
	}
	sessions := workspace.NewStore(cfg.SessionTTL, wsOpts, log)
	sessions.Start(ctx, 5*time.Minute)

	srv := api.NewServer(gw, sessions, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// Replies stream for as long as the upstream is allowed to run.
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		sessions.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting pdfchat",
		"port", cfg.Port,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"auth", cfg.AccessToken != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
