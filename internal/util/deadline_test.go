package util

import (
	"context"
	"testing"
	"time"
)

func TestDeadlinePrefersEarlierContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ctxDL, _ := ctx.Deadline()
	if got := Deadline(ctx, time.Minute); !got.Equal(ctxDL) { t.Fatalf("deadline=%v want ctx deadline %v", got, ctxDL) }

	before := time.Now()
	got := Deadline(context.Background(), time.Second)
	if got.Before(before.Add(time.Second)) || got.After(time.Now().Add(time.Second)) { t.Fatalf("deadline=%v not now+1s", got) }
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" { t.Fatalf("got %q", got) }
	if got := Truncate("ab", 3); got != "ab" { t.Fatalf("got %q", got) }
	if got := Truncate("ab", -1); got != "" { t.Fatalf("got %q", got) }
}
