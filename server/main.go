package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herocoach/server/bus"
	"herocoach/server/config"
	"herocoach/server/engine"
	"herocoach/server/logger"
	"herocoach/server/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var migrate bool
	for _, a := range os.Args[1:] {
		if a == "--migrate" {
			migrate = true
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	tun, err := config.LoadTunables(cfg.TunablesFile)
	if err != nil {
		lg.Fatal("tunables", "file", cfg.TunablesFile, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.New(ctx, cfg.StoreOptions())
	if err != nil {
		lg.Fatal("open store", "kind", cfg.StoreKind, "error", err)
	}
	defer backend.Close()

	if migrate || cfg.AutoMigrate {
		m, ok := backend.(store.Migrator)
		switch {
		case ok:
			if err := m.Migrate(ctx); err != nil {
				lg.Fatal("migrate", "error", err)
			}
			lg.Info("migrated", "kind", cfg.StoreKind)
		case migrate:
			lg.Warn("store has no schema to migrate", "kind", cfg.StoreKind)
		}
	}
	if migrate {
		return
	}

	var (
		extra []engine.Emitter
		pub   *bus.RedisPublisher
	)
	if cfg.PublishEvents() {
		pub, err = bus.NewRedisPublisher(lg, cfg.RedisAddr, cfg.EventsChannel)
		if err != nil {
			lg.Warn("event publishing disabled", "error", err)
			pub = nil
		} else {
			defer pub.Close()
			extra = append(extra, pub)
			lg.Info("publishing events", "channel", pub.Channel(), "origin", pub.Origin())
		}
	}

	hub := NewHub(backend, lg, tun, cfg.ChildProfile, extra...)
	if pub != nil {
		// other instances' events reach this instance's /events streams
		if err := pub.Listen(ctx, hub.Bus().Emit); err != nil {
			lg.Warn("remote events disabled", "error", err)
		}
	}
	go hub.Run(ctx, time.Minute, IdleTTL)
	// no WriteTimeout: /events streams stay open until the client or a signal ends them
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     Router(hub),
		ReadTimeout: 15 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	lg.Info("listening", "addr", "http://localhost:"+cfg.Port, "store", cfg.StoreKind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("server stopped", "error", err)
	}
}
