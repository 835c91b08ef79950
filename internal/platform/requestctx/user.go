// Package requestctx carries the authenticated actor through request contexts.
package requestctx

import "context"

// Actor is the identity resolved at the transport boundary.
type Actor struct {
	UserID string
	Role   string
}

type actorContextKey struct{}

// WithActor stores an actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor stored in context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	value, ok := ctx.Value(actorContextKey{}).(Actor)
	return value, ok
}

// UserIDFromContext returns the user identifier of the stored actor.
func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}
