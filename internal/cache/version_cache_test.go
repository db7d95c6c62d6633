package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoadCachesValues(t *testing.T) {
	c := NewVersionCache(10, time.Minute)

	var calls int32
	load := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
		if v.(string) != "value" {
			t.Fatalf("unexpected value %v", v)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected one loader call, got %d", n)
	}
}

func TestGetOrLoadSharesConcurrentFlights(t *testing.T) {
	c := NewVersionCache(10, time.Minute)

	var calls int32
	gate := make(chan struct{})
	load := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return 42, nil
	}

	const readers = 8
	var wg sync.WaitGroup
	results := make(chan interface{}, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad("k", load)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results <- v
		}()
	}
	// let the goroutines pile onto the flight before releasing it
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)

	for v := range results {
		if v.(int) != 42 {
			t.Errorf("unexpected value %v", v)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single shared loader call, got %d", n)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewVersionCache(10, time.Minute)

	boom := errors.New("storage down")
	var calls int32
	failing := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	if _, err := c.GetOrLoad("k", failing); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, err := c.GetOrLoad("k", failing); !errors.Is(err, boom) {
		t.Fatalf("expected loader error again, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("errors must not be cached: expected 2 loader calls, got %d", n)
	}

	v, err := c.GetOrLoad("k", func() (interface{}, error) { return "ok", nil })
	if err != nil || v.(string) != "ok" {
		t.Errorf("expected recovery after failures, got %v/%v", v, err)
	}
}

func TestInvalidate(t *testing.T) {
	c := NewVersionCache(10, time.Minute)

	var calls int32
	load := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "v", nil
	}
	if _, err := c.GetOrLoad("k", load); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	c.Invalidate("k")
	if _, err := c.GetOrLoad("k", load); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected reload after invalidation, got %d calls", n)
	}
}
