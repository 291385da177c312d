package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clocktower-lite/apps/server/internal/ledger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(map[string]string{"STORAGE_MODE": "memory"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != "" {
		t.Fatalf("unexpected addresses %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.SessionTTL != 14*24*time.Hour || cfg.TableIdleTTL != 30*time.Minute || cfg.BluffFallback != "N/A" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(map[string]string{
		"STORAGE_MODE":        "SQLite",
		"LOCAL_DATABASE_PATH": filepath.Join(dir, "ct.db"),
		"AUTH_SESSION_TTL":    "2h",
		"TABLE_IDLE_TTL":      "90s",
		"ALLOWED_ORIGINS":     "https://a.example,https://b.example",
		"LEDGER_IMPORT_CSV":   "/tmp/match_history.csv",
	})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.StorageMode != "sqlite" || cfg.SessionTTL != 2*time.Hour || cfg.TableIdleTTL != 90*time.Second {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := []map[string]string{
		{"STORAGE_MODE": "redis"},
		{"STORAGE_MODE": "postgres"},
		{"STORAGE_MODE": "memory", "AUTH_SESSION_TTL": "soon"},
		{"STORAGE_MODE": "memory", "TABLE_IDLE_TTL": "0s"},
	}
	for _, environ := range cases {
		if _, err := loadConfig(environ); err == nil {
			t.Fatalf("expected error for %v", environ)
		}
	}
}

func TestImportLegacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_history.csv")
	data := "1|Demon|sam|Trouble Brewing,Demon,ann,Imp\n1|Demon|sam|Trouble Brewing,Townsfolk,ben,Chef\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc := ledger.NewMemoryService()
	if err := importLegacy(context.Background(), path, svc); err != nil {
		t.Fatalf("importLegacy failed: %v", err)
	}
	rows, _ := svc.PlayerRows(context.Background(), "ann")
	if len(rows) != 1 || !rows[0].Won() {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if err := importLegacy(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), svc); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(ledger.NewMemoryService())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestGRPCHealthReportsLedger(t *testing.T) {
	store, err := ledger.NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService failed: %v", err)
	}
	hs, err := newHealthServer("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("newHealthServer failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Serve(ctx, 20*time.Millisecond) }()

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer callCancel()
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: ledgerHealthService})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		return resp.GetStatus()
	}
	if got := check(); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}

	_ = store.Close()
	deadline := time.Now().Add(2 * time.Second)
	for check() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		if time.Now().After(deadline) {
			t.Fatalf("ledger outage never reported")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}
