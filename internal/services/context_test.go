package services_test

import (
	"context"
	"testing"

	"authindex/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithIndexType(ctx, "authority")
	ctx = services.WithRunID(ctx, "run-7")
	ctx = services.WithRequestID(ctx, "req-123")

	if indexType, ok := services.IndexTypeFromContext(ctx); !ok || indexType != "authority" {
		t.Fatalf("unexpected index type: %v %v", indexType, ok)
	}
	if runID, ok := services.RunIDFromContext(ctx); !ok || runID != "run-7" {
		t.Fatalf("unexpected run id: %v %v", runID, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithIndexType(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.IndexTypeFromContext(ctx); ok {
		t.Fatal("expected no index type value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
