// Package ratelimit provides a swappable request rate limiter. The in-memory
// implementation suits single-instance deployments; the Redis implementation
// is for horizontally scaled ones. Rate limiting is an abuse-mitigation
// heuristic, not a correctness mechanism: limiter failures fail open.
package ratelimit

import "context"

// Limiter decides whether a request identified by key may proceed within the
// current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
