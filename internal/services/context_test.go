package services_test

import (
	"context"
	"testing"

	"storyforge/internal/services"
)

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("unexpected task id on empty context")
	}

	ctx = services.WithTaskID(ctx, "task_20260101_000000_42")
	ctx = services.WithStage(ctx, "analysis")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "task_20260101_000000_42" {
		t.Fatalf("task id round trip failed: %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "analysis" {
		t.Fatalf("stage round trip failed: %q %v", stage, ok)
	}
	if req, ok := services.RequestIDFromContext(ctx); !ok || req != "req-1" {
		t.Fatalf("request id round trip failed: %q %v", req, ok)
	}
}

func TestEmptyAnnotationsAreIgnored(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("empty stage should not be stored")
	}
}
