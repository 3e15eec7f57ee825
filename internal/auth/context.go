package auth

import "context"

type contextKey string

const contextKeyActor contextKey = "auth.actor"

// WithActor stores the authenticated actor in context. The HTTP layer uses
// this to hand the actor to services; core components take it as a parameter.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(contextKeyActor).(Actor)
	return actor, ok
}
