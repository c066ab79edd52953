package backend

import (
	"context"
	"path/filepath"
	"testing"

	"nettracker/internal/config"
	"nettracker/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	tests := []struct {
		name    string
		config  Config
		wantErr bool
		wantKV  string
	}{
		{name: "memory", config: Config{Type: MemoryBackend}, wantKV: "memory"},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "kv.db")}, wantKV: "sqlite"},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "unknown", config: Config{Type: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := factory.CreateBackend(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Cleanup()

			switch tt.wantKV {
			case "memory":
				if _, ok := res.KV.(*storage.MemoryKV); !ok {
					t.Errorf("got %T, want memory store", res.KV)
				}
			case "sqlite":
				if _, ok := res.KV.(*storage.SQLiteKV); !ok {
					t.Errorf("got %T, want sqlite store", res.KV)
				}
			}

			if err := res.KV.Set(ctx, "k", "v"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if v, ok, err := res.KV.Get(ctx, "k"); err != nil || !ok || v != "v" {
				t.Errorf("Get = %q %v %v", v, ok, err)
			}
		})
	}
}
