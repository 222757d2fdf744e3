package ledger

import "context"

type contextKey struct{}

// NewContext returns a context carrying the session's ledger.
func NewContext(ctx context.Context, l *Ledger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the session ledger, or nil if none is attached.
func FromContext(ctx context.Context) *Ledger {
	l, _ := ctx.Value(contextKey{}).(*Ledger)
	return l
}
