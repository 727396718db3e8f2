// Package context holds request-scoped values shared across layers.
package context

type contextKey string
