package shared

import "context"

// Actor identifies who performs an operation. Identity is resolved upstream;
// the service only carries it through so log rows can record performedBy.
type Actor struct {
	Name string
}

// System is the actor recorded for background jobs.
var System = Actor{Name: "system"}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor, falling back to an anonymous one.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.Name == "" {
		return Actor{Name: "anonymous"}
	}
	return actor
}
