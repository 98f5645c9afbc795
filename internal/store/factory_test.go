package store

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewStore_Memory(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, TypeMemory, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore('memory') failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
	defer store.Close()

	if _, err := store.UpsertProgram(ctx, UpsertProgramParams{ID: "p", OrgID: "o", Name: "P", Active: true}); err != nil {
		t.Fatalf("UpsertProgram failed: %v", err)
	}
	progs, err := store.ListPrograms(ctx, "o")
	if err != nil {
		t.Fatalf("ListPrograms failed: %v", err)
	}
	if len(progs) != 1 {
		t.Errorf("Expected 1 program, got %d", len(progs))
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	_, err := NewStore(context.Background(), "invalid-type", "", zerolog.Nop())
	if err == nil {
		t.Fatal("Expected error for unsupported store type")
	}
	if !strings.Contains(err.Error(), `"invalid-type"`) {
		t.Errorf("error should name the rejected type, got %q", err.Error())
	}
}

func TestNewStore_PostgresWithInvalidDSN(t *testing.T) {
	_, err := NewStore(context.Background(), TypePostgres, "postgres://%zz", zerolog.Nop())
	if err == nil {
		t.Fatal("Expected error for invalid DSN")
	}
}

func TestNewStore_CaseSensitivity(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"Memory", "MEMORY"} {
		if _, err := NewStore(ctx, typ, "", zerolog.Nop()); err == nil {
			t.Errorf("Expected error for %q", typ)
		}
	}
}
