package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"allowance/internal/config"
	applog "allowance/internal/log"
	"allowance/internal/services"
	mem "allowance/internal/sheets/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:     t.TempDir(),
		LedgerFile:  "allowance.csv",
		GoalsFile:   "goals.csv",
		PresetsFile: "presets.csv",
		DecodeMode:  "tolerant",
		ImportMode:  "passthrough",
		RecentDays:  7,
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	logger := SetupLogger(cfg, &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestOpenStoreSeedsNewTablesOnly(t *testing.T) {
	cfg := testConfig(t)
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	content := "goals:\n  - goal: Switch\n    amount: 25000\npresets:\n  - label: chores\n    amount: 100\n"
	if err := os.WriteFile(seedPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.SeedFile = seedPath
	ctx := context.Background()

	store, err := OpenStore(ctx, cfg, applog.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	goals, err := store.Goals.ListGoals(ctx)
	if err != nil || len(goals) != 1 || goals[0].Goal != "Switch" {
		t.Fatalf("unexpected goals %+v %v", goals, err)
	}

	// A second start finds the tables and leaves them alone.
	store, err = OpenStore(ctx, cfg, applog.Discard())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	presets, err := store.Presets.ListPresets(ctx)
	if err != nil || len(presets) != 1 {
		t.Fatalf("seed applied twice: %+v %v", presets, err)
	}
}

func TestOpenStoreBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := OpenStore(context.Background(), cfg, applog.Discard()); err == nil {
		t.Fatalf("expected error for missing seed file")
	}
}

func TestOptionalIntegrationsFallBack(t *testing.T) {
	cfg := testConfig(t)

	pub, closeFn := NewPublisher(cfg, applog.Discard())
	if _, ok := pub.(services.NopPublisher); !ok {
		t.Fatalf("expected NopPublisher without AMQP_URL, got %T", pub)
	}
	closeFn()

	mirror, err := NewMirror(context.Background(), cfg, applog.Discard())
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}
	if _, ok := mirror.(*mem.Mirror); !ok {
		t.Fatalf("expected memory mirror, got %T", mirror)
	}
}

func TestNewLedgerService(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	store, err := OpenStore(ctx, cfg, applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	svc := NewLedgerService(store, services.NopPublisher{}, cfg, applog.Discard())
	e, err := svc.AddEntry(ctx, "init", 200, "2025-08-31")
	if err != nil || e.Balance != 200 {
		t.Fatalf("unexpected %+v %v", e, err)
	}
}
