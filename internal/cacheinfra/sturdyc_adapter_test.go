package cacheinfra

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.TTL != 5*time.Minute {
		t.Errorf("expected TTL to be 5 minutes, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			cfg:       DefaultConfig(),
			wantError: false,
		},
		{
			name: "invalid capacity - zero",
			cfg: Config{
				Capacity:           0,
				NumShards:          256,
				TTL:                5 * time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "Capacity",
		},
		{
			name: "invalid shards",
			cfg: Config{
				Capacity:           10,
				NumShards:          0,
				TTL:                time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "NumShards",
		},
		{
			name: "invalid ttl",
			cfg: Config{
				Capacity:           10,
				NumShards:          1,
				TTL:                0,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "TTL",
		},
		{
			name: "eviction percentage over 100",
			cfg: Config{
				Capacity:           10,
				NumShards:          1,
				TTL:                time.Minute,
				EvictionPercentage: 101,
			},
			wantError: true,
			errorMsg:  "must be between 1 and 100",
		},
		{
			name: "negative eviction interval",
			cfg: Config{
				Capacity:           10,
				NumShards:          1,
				TTL:                time.Minute,
				EvictionPercentage: 10,
				EvictionInterval:   -time.Second,
			},
			wantError: true,
			errorMsg:  "EvictionInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	_, err := NewSturdycService(Config{})
	if err == nil {
		t.Fatal("expected error for zero config")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func newTestSturdyc(t *testing.T) *sturdycService {
	t.Helper()
	svc, err := NewSturdycService(Config{
		Capacity:           100,
		NumShards:          4,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	})
	if err != nil {
		t.Fatalf("NewSturdycService() failed: %v", err)
	}
	return svc
}

func TestSturdycService_GetSetDelete(t *testing.T) {
	svc := newTestSturdyc(t)
	ctx := context.Background()

	if _, found, err := svc.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := svc.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	value, found, err := svc.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if string(value) != "v1" {
		t.Errorf("expected v1, got %q", value)
	}

	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, found, _ := svc.Get(ctx, "k"); found {
		t.Error("expected key to be deleted")
	}
}

func TestSturdycService_AddDoesNotOverwrite(t *testing.T) {
	svc := newTestSturdyc(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, "k", []byte("first"))
	if err != nil || !added {
		t.Fatalf("expected first add to succeed, got added=%v err=%v", added, err)
	}

	added, err = svc.Add(ctx, "k", []byte("second"))
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if added {
		t.Error("expected second add to be rejected")
	}

	value, _, _ := svc.Get(ctx, "k")
	if string(value) != "first" {
		t.Errorf("expected first writer to win, got %q", value)
	}

	if err := svc.Set(ctx, "k", []byte("third")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	value, _, _ = svc.Get(ctx, "k")
	if string(value) != "third" {
		t.Errorf("expected Set to overwrite, got %q", value)
	}
}
