package services_test

import (
	"context"
	"testing"

	"veritas/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCanonicalURL(ctx, "https://www.youtube.com/watch?v=abc")
	ctx = services.WithVideoID(ctx, "abc")
	ctx = services.WithStage(ctx, "sample")
	ctx = services.WithRequestID(ctx, "req-123")

	tests := []struct {
		name string
		get  func(context.Context) (string, bool)
		want string
	}{
		{"canonical url", services.CanonicalURLFromContext, "https://www.youtube.com/watch?v=abc"},
		{"video id", services.VideoIDFromContext, "abc"},
		{"stage", services.StageFromContext, "sample"},
		{"request id", services.RequestIDFromContext, "req-123"},
	}
	for _, tc := range tests {
		if got, ok := tc.get(ctx); !ok || got != tc.want {
			t.Fatalf("%s = %q (%v), want %q", tc.name, got, ok, tc.want)
		}
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithVideoID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.VideoIDFromContext(ctx); ok {
		t.Fatal("expected no video id value")
	}
}

func TestStageOverridesParent(t *testing.T) {
	parent := services.WithStage(context.Background(), "acquire")
	child := services.WithStage(parent, "score")
	if stage, _ := services.StageFromContext(child); stage != "score" {
		t.Fatalf("child stage = %q", stage)
	}
	if stage, _ := services.StageFromContext(parent); stage != "acquire" {
		t.Fatalf("parent stage = %q", stage)
	}
}
