package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clocktower-lite/apps/server/internal/auth"
	"clocktower-lite/apps/server/internal/gateway"
	"clocktower-lite/apps/server/internal/ledger"
	"clocktower-lite/apps/server/internal/lobby"
	"clocktower-lite/apps/server/internal/table"
	"clocktower-lite/grimoire"
)

func main() {
	cfg, err := loadConfig(nil)
	if err != nil {
		log.Fatalf("[Server] Invalid config: %v", err)
	}

	authService, authMode, err := auth.NewService(auth.Options{
		Mode:        cfg.StorageMode,
		SQLitePath:  cfg.LocalDatabasePath,
		PostgresDSN: cfg.DatabaseURL,
		SessionTTL:  cfg.SessionTTL,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	ledgerService, ledgerMode, err := ledger.NewService(cfg.StorageMode, cfg.LocalDatabasePath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LedgerImportCSV != "" {
		if err := importLegacy(ctx, cfg.LedgerImportCSV, ledgerService); err != nil {
			log.Fatalf("[Server] Legacy import failed: %v", err)
		}
	}

	lby := lobby.New(nil, ledgerService)
	lby.SetGeneratorConfig(grimoire.Config{BluffFallback: cfg.BluffFallback})
	lby.AddGameEndHook(func(info table.GameEndInfo) {
		log.Printf("[Server] Table %s recorded game %d: %s", info.TableID, info.Game, info.Result.Key())
	})
	defer lby.Close()
	go lby.RunReaper(ctx, time.Minute, cfg.TableIdleTTL)

	gw := gateway.New(lby, authService, cfg.AllowedOrigins...)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", healthHandler(ledgerService))
	auth.NewHTTPHandler(authService).RegisterRoutes(mux)
	ledger.NewHTTPHandler(authService, ledgerService).RegisterRoutes(mux)
	lobby.NewHTTPHandler(lby).RegisterRoutes(mux)

	if cfg.GRPCAddr != "" {
		hs, err := newHealthServer(cfg.GRPCAddr, ledgerService)
		if err != nil {
			log.Fatalf("[Server] Failed to start gRPC health: %v", err)
		}
		go func() {
			if err := hs.Serve(ctx, 15*time.Second); err != nil {
				log.Printf("[Server] gRPC health stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[Server] Auth mode: %s", authMode)
	log.Printf("[Server] Ledger mode: %s", ledgerMode)
	log.Printf("[Server] Starting server on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
	log.Printf("[Server] Stopped")
}

func importLegacy(ctx context.Context, path string, svc ledger.Service) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sum, err := ledger.ImportCSV(ctx, f, svc)
	if err != nil {
		return err
	}
	log.Printf("[Server] Imported %s: %d matches, %d duplicates, %d skipped rows",
		path, sum.Matches, sum.Duplicates, sum.Skipped)
	return nil
}

func healthHandler(ledgerService ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ledgerService.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("ledger unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
