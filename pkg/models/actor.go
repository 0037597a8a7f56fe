package models

import "context"

// ActorSource records how a mutating call reached the store.
type ActorSource string

const (
	ActorSourceAPI  ActorSource = "api"  // Authenticated HTTP caller
	ActorSourceSeed ActorSource = "seed" // Startup YAML import
)

// Actor is the opaque authenticated subject attached to a mutating call.
// Subject is issued by the external identity provider and never interpreted.
type Actor struct {
	Subject string
	Source  ActorSource
}

type actorKey struct{}

// WithActor returns a new context with the actor attached.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// GetActor retrieves the actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.Subject != ""
}
