package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"veritas/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "acquire", "download", "yt-dlp failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"acquire", "download", "yt-dlp failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Category
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "scoring", "motion", "too few frames", nil), services.CategoryValidation},
		{"not found", services.Wrap(services.ErrNotFound, "cache", "lookup", "", nil), services.CategoryNotFound},
		{"deadline", fmt.Errorf("sampling: %w", context.DeadlineExceeded), services.CategoryTimeout},
		{"external", services.Wrap(services.ErrExternalTool, "acquire", "", "", errors.New("exit 1")), services.CategoryExternalTool},
		{"config", services.Wrap(services.ErrConfiguration, "factcheck", "", "", nil), services.CategoryConfiguration},
		{"plain", errors.New("io"), services.CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
