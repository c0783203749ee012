package otel

import (
	"context"
	"testing"
)

func TestSetupDisabledReturnsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "concord", "http://localhost:4318", false)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupWithoutEndpointReturnsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "concord", " ", true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}
