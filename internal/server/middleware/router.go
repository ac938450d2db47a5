// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package middleware provides HTTP middleware chaining for route registration.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// RouteBuilder registers routes on a mux with a middleware chain applied.
// Builders are immutable: With and Group return derived builders, so route
// groups can share a base chain without affecting each other.
type RouteBuilder struct {
	mux   *http.ServeMux
	chain []Middleware
}

// NewRouteBuilder creates a RouteBuilder around the given mux.
func NewRouteBuilder(mux *http.ServeMux) *RouteBuilder {
	return &RouteBuilder{mux: mux}
}

// With returns a new builder whose chain is this builder's chain followed by
// the given middlewares. Middlewares listed first run outermost.
func (b *RouteBuilder) With(mws ...Middleware) *RouteBuilder {
	chain := make([]Middleware, 0, len(b.chain)+len(mws))
	chain = append(chain, b.chain...)
	chain = append(chain, mws...)
	return &RouteBuilder{mux: b.mux, chain: chain}
}

// Group is an alias for With, used to name a derived route group.
func (b *RouteBuilder) Group(mws ...Middleware) *RouteBuilder {
	return b.With(mws...)
}

// Handle registers a handler for the pattern with the chain applied.
func (b *RouteBuilder) Handle(pattern string, handler http.Handler) {
	b.mux.Handle(pattern, b.wrap(handler))
}

// HandleFunc registers a handler function for the pattern with the chain applied.
func (b *RouteBuilder) HandleFunc(pattern string, handler http.HandlerFunc) {
	b.Handle(pattern, handler)
}

func (b *RouteBuilder) wrap(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(b.chain) - 1; i >= 0; i-- {
		wrapped = b.chain[i](wrapped)
	}
	return wrapped
}
