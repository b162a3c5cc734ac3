package ids

import (
	"sync"
	"testing"
)

func TestNewIsUniqueUnderConcurrency(t *testing.T) {
	const n = 500
	out := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- New()
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[string]struct{}, n)
	for id := range out {
		if len(id) != 26 {
			t.Fatalf("unexpected id length for %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
