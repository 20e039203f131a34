// Package stream provides channel combinators used to assemble per-connection
// event pipelines.
package stream

import (
	"context"
	"sync"
)

// Merge fans several sources into one channel. Each source gets its own
// forwarding goroutine, so the order of values from a single source is kept,
// while the runtime's random choice between ready senders interleaves the
// sources fairly. The output is unbuffered: a stalled consumer holds back at
// most one value per source and the sources' own bounded queues absorb the
// rest.
//
// The returned channel is closed once every source is closed or ctx is done.
func Merge[T any](ctx context.Context, sources ...<-chan T) <-chan T {
	out := make(chan T)

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, src := range sources {
		go func(src <-chan T) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-src:
					if !ok {
						return
					}
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
