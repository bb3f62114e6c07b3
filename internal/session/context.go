package session

import "context"

type contextKey string

const sourceContextKey contextKey = "wanzo_session"

func ContextWithSource(ctx context.Context, src *Source) context.Context {
	return context.WithValue(ctx, sourceContextKey, src)
}

func SourceFromContext(ctx context.Context) (*Source, bool) {
	src, ok := ctx.Value(sourceContextKey).(*Source)
	return src, ok && src != nil
}
