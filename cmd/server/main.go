package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/kbchat/internal/api"
	"github.com/dgallion1/kbchat/internal/config"
	"github.com/dgallion1/kbchat/internal/parser"
	"github.com/dgallion1/kbchat/internal/pipeline"
	"github.com/dgallion1/kbchat/internal/reply"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Options{
		Dir:            cfg.KBDir,
		ManifestName:   cfg.ManifestName,
		ReconvertStale: cfg.ReconvertStale,
		Parser: parser.Options{
			PDFValidate:          cfg.PDFValidate,
			PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
		},
	}, log)

	// The manifest must exist before the first client asks for it.
	if _, err := p.Run(ctx, pipeline.TriggerServerStart); err != nil {
		log.Error("knowledge base build failed", "error", err)
		os.Exit(1)
	}

	rc := reply.NewClient(cfg.ReplyWebhookURL, cfg.ReplySessionID, cfg.ReplyTimeout, reply.WithLogger(log))
	defer rc.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewServer(p, rc, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ReplyTimeout*time.Duration(reply.MaxRetries) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting kbchat", "port", cfg.Port, "kb_dir", cfg.KBDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Watch {
		g.Go(func() error {
			return pipeline.NewWatcher(p, cfg.WatchDebounce, log).Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
