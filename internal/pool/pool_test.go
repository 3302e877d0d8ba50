package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MinWorkers:  1,
		MaxWorkers:  2,
		QueueSize:   16,
		TaskTimeout: 200 * time.Millisecond,
		IdleTimeout: 50 * time.Millisecond,
	}
}

func TestSubmitSuccess(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	res, err := p.Submit(context.Background(), Task{
		Format: "word",
		Run: func(ctx context.Context) ([]byte, error) {
			return []byte("converted"), nil
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.OK || string(res.Output) != "converted" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTaskErrorIsTagged(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	res, err := p.Submit(context.Background(), Task{
		Format: "excel",
		Run: func(ctx context.Context) ([]byte, error) {
			return nil, errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("task failure must not surface as submit error: %v", err)
	}
	if res.OK || res.ErrMessage != "boom" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return "no export filter" }
func (e *codedError) ErrorCode() string { return e.code }

func TestErrorCodePassthrough(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	res, err := p.Submit(context.Background(), Task{
		Run: func(ctx context.Context) ([]byte, error) {
			return nil, fmt.Errorf("convert: %w", &codedError{code: "NO_EXPORT_FILTER"})
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.OK || res.ErrCode != "NO_EXPORT_FILTER" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPanicIsolation(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	res, err := p.Submit(context.Background(), Task{
		Run: func(ctx context.Context) ([]byte, error) {
			panic("converter went sideways")
		},
	})
	if err != nil {
		t.Fatalf("panic must not surface as submit error: %v", err)
	}
	if res.OK || res.ErrMessage == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	// The pool keeps working after a panicking task.
	res, err = p.Submit(context.Background(), Task{
		Run: func(ctx context.Context) ([]byte, error) { return []byte("ok"), nil },
	})
	if err != nil || !res.OK {
		t.Fatalf("pool unusable after panic: res=%+v err=%v", res, err)
	}
}

func TestTimeoutDiscardsUnitAndAcceptsNewWork(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	start := time.Now()
	res, err := p.Submit(context.Background(), Task{
		Format: "ppt",
		Run: func(ctx context.Context) ([]byte, error) {
			// Ignores cancellation, simulating a hung converter.
			time.Sleep(2 * time.Second)
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.OK || res.ErrCode != CodeTimeout {
		t.Fatalf("expected TIMEOUT result, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced promptly: %s", elapsed)
	}

	// A replacement unit must pick up new work immediately.
	res, err = p.Submit(context.Background(), Task{
		Run: func(ctx context.Context) ([]byte, error) { return []byte("ok"), nil },
	})
	if err != nil || !res.OK {
		t.Fatalf("pool unusable after timeout: res=%+v err=%v", res, err)
	}
}

func TestConcurrencyBoundedByMaxWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.TaskTimeout = 5 * time.Second
	p := New(cfg)
	defer p.Close()

	var mu sync.Mutex
	running, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), Task{
				Run: func(ctx context.Context) ([]byte, error) {
					mu.Lock()
					running++
					if running > peak {
						peak = running
					}
					mu.Unlock()
					time.Sleep(50 * time.Millisecond)
					mu.Lock()
					running--
					mu.Unlock()
					return nil, nil
				},
			})
			if err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > cfg.MaxWorkers {
		t.Fatalf("observed %d concurrent tasks, max is %d", peak, cfg.MaxWorkers)
	}
}

func TestIdleWorkersRetireToMin(t *testing.T) {
	cfg := testConfig()
	cfg.TaskTimeout = time.Second
	p := New(cfg)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Submit(context.Background(), Task{
				Run: func(ctx context.Context) ([]byte, error) {
					time.Sleep(20 * time.Millisecond)
					return nil, nil
				},
			})
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().Workers <= cfg.MinWorkers {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("workers did not retire to min: %+v", p.Stats())
}

func TestIdleRetirementNeverUndershootsMin(t *testing.T) {
	cfg := Config{
		MinWorkers:  2,
		MaxWorkers:  4,
		QueueSize:   16,
		TaskTimeout: time.Second,
		IdleTimeout: 20 * time.Millisecond,
	}
	p := New(cfg)
	defer p.Close()

	// Grow the pool, then watch the count the whole way back down.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Submit(context.Background(), Task{
				Run: func(ctx context.Context) ([]byte, error) {
					time.Sleep(30 * time.Millisecond)
					return nil, nil
				},
			})
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n := p.Stats().Workers; n < cfg.MinWorkers {
			t.Fatalf("pool dropped below min: %d < %d", n, cfg.MinWorkers)
		}
		time.Sleep(time.Millisecond)
	}
	if n := p.Stats().Workers; n != cfg.MinWorkers {
		t.Fatalf("workers did not settle at min: %d", n)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(testConfig())
	p.Close()

	_, err := p.Submit(context.Background(), Task{
		Run: func(ctx context.Context) ([]byte, error) { return nil, nil },
	})
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}
