package context

import (
	"context"
)

const contextKeyClientID = contextKey("clientID")

// ClientIDFromContext extracts the client ID selecting the caller's session slot.
// Returns false if the context carries no client ID; callers then use the
// default slot.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(contextKeyClientID).(string)

	return clientID, ok && clientID != ""
}

// WithClientID returns a context bound to the session slot of the given client.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, contextKeyClientID, clientID)
}
