package audit

import "context"

type contextKey struct{}

type metadata struct {
	actor     string
	requestID string
	ipAddress string
	userAgent string
}

// Anonymous is recorded as the actor when no staff member is attached to the
// request, e.g. when authentication is disabled.
const Anonymous = "anonymous"

// WithRequest attaches request metadata used to fill audit events.
func WithRequest(ctx context.Context, requestID, ipAddress, userAgent string) context.Context {
	meta := metadataFrom(ctx)
	meta.requestID = requestID
	meta.ipAddress = ipAddress
	meta.userAgent = userAgent
	return context.WithValue(ctx, contextKey{}, meta)
}

// WithActor records the staff member performing the request.
func WithActor(ctx context.Context, userID string) context.Context {
	meta := metadataFrom(ctx)
	meta.actor = userID
	return context.WithValue(ctx, contextKey{}, meta)
}

// ActorFrom returns the actor stored by WithActor, or Anonymous.
func ActorFrom(ctx context.Context) string {
	return metadataFrom(ctx).actor
}

func metadataFrom(ctx context.Context) metadata {
	meta, _ := ctx.Value(contextKey{}).(metadata)
	if meta.actor == "" {
		meta.actor = Anonymous
	}
	return meta
}
