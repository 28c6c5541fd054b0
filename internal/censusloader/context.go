package censusloader

import "context"

type ctxKey string

const loaderKey ctxKey = "censusLoader"

// NewContext stores a request-scoped loader in the context.
func NewContext(ctx context.Context, loader *CensusLoader) context.Context {
	return context.WithValue(ctx, loaderKey, loader)
}

// FromContext retrieves the loader, or nil when none was attached.
func FromContext(ctx context.Context) *CensusLoader {
	if l, ok := ctx.Value(loaderKey).(*CensusLoader); ok {
		return l
	}
	return nil
}
