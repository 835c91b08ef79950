package requestctx

import (
	"context"
	"testing"
)

func TestActorFromContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "user-42", Role: "MANAGER"})
	got, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got.UserID != "user-42" || got.Role != "MANAGER" {
		t.Fatalf("ActorFromContext = %+v", got)
	}
	if UserIDFromContext(ctx) != "user-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", UserIDFromContext(ctx), "user-42")
	}
}

func TestActorFromContextEmpty(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor")
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestActorFromContextNil(t *testing.T) {
	if _, ok := ActorFromContext(nil); ok {
		t.Fatal("expected no actor for nil context")
	}
}

func TestWithActorNilContext(t *testing.T) {
	ctx := WithActor(nil, Actor{UserID: "user-99"})
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	if got := UserIDFromContext(ctx); got != "user-99" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-99")
	}
}
