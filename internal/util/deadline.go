package util

import (
	"context"
	"time"
)

// Deadline returns now+timeout, or the ctx deadline when that comes first.
// fasthttp's DoDeadline takes an absolute time rather than a context.
func Deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

// Truncate cuts s to at most n bytes for log and error messages.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}
