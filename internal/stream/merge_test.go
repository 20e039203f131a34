package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, ch <-chan T) []T {
	t.Helper()
	var out []T
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timeout:
			t.Fatalf("merge did not complete, collected %d values", len(out))
		}
	}
}

func feed(values ...string) <-chan string {
	ch := make(chan string, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func TestMergePreservesPerSourceOrder(t *testing.T) {
	req := require.New(t)

	merged := collect(t, Merge(context.Background(), feed("a1", "a2", "a3"), feed("b1", "b2")))
	req.Len(merged, 5)
	req.ElementsMatch([]string{"a1", "a2", "a3", "b1", "b2"}, merged)

	position := make(map[string]int, len(merged))
	for i, v := range merged {
		position[v] = i
	}
	req.Less(position["a1"], position["a2"])
	req.Less(position["a2"], position["a3"])
	req.Less(position["b1"], position["b2"])
}

func TestMergeIsFair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	busy := make(chan int)
	quiet := make(chan int)
	go func() {
		for i := 0; ; i++ {
			select {
			case busy <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case quiet <- -1:
			case <-ctx.Done():
				return
			}
		}
	}()

	merged := Merge[int](ctx, busy, quiet)
	fromQuiet := 0
	for i := 0; i < 1000; i++ {
		if <-merged < 0 {
			fromQuiet++
		}
	}
	if fromQuiet < 100 || fromQuiet > 900 {
		t.Fatalf("unfair interleaving: %d of 1000 values from the second source", fromQuiet)
	}
}

func TestMergeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	never := make(chan string)

	merged := Merge[string](ctx, never)
	cancel()

	select {
	case _, ok := <-merged:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("merged channel not closed after cancel")
	}
}

func TestMergeWithoutSources(t *testing.T) {
	_, ok := <-Merge[string](context.Background())
	require.False(t, ok)
}
