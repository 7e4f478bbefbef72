package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewSnowflakeRejectsWorkerID(t *testing.T) {
	for _, id := range []int64{-1, maxWorkerID + 1} {
		if _, err := NewSnowflake(id); err == nil {
			t.Errorf("workerID %d should be rejected", id)
		}
	}
}

func TestGenerateMonotonic(t *testing.T) {
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatal(err)
	}

	prev := s.Generate()
	for i := 0; i < 10000; i++ {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("id %d not greater than %d", next, prev)
		}
		prev = next
	}
}

func TestGenerateClockBackwards(t *testing.T) {
	s, err := NewSnowflake(1)
	if err != nil {
		t.Fatal(err)
	}
	clock := int64(1735689600000)
	s.now = func() int64 { return clock }

	first := s.Generate()
	clock -= 1000
	second := s.Generate()
	if second <= first {
		t.Fatalf("clock rollback produced non-increasing id: %d <= %d", second, first)
	}
}

func TestGenerateTransactionNoUnique(t *testing.T) {
	const workers, perWorker = 8, 2000

	var (
		wg   sync.WaitGroup
		lock sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, GenerateTransactionNo())
			}
			lock.Lock()
			defer lock.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate transaction no %s", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	for id := range seen {
		if !strings.HasPrefix(id, "TXN-") {
			t.Fatalf("unexpected format %s", id)
		}
		break
	}
}
