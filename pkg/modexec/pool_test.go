package modexec

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool_InvokeAll_OrderPreserved(t *testing.T) {
	ch := testChannel()
	pool := NewPool(ch, 3, zerolog.Nop())

	requests := make([]Request, 8)
	for i := range requests {
		requests[i] = Request{
			Executable: modulePath("echo_args.sh"),
			Args:       map[string]interface{}{"index": i},
			Timeout:    10 * time.Second,
		}
	}

	outcomes := pool.InvokeAll(context.Background(), requests)

	if len(outcomes) != len(requests) {
		t.Fatalf("Expected %d outcomes, got %d", len(requests), len(outcomes))
	}

	seen := make(map[string]bool)
	for i, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("Outcome %d failed: %v", i, out.Err)
		}
		if out.ID == "" || seen[out.ID] {
			t.Errorf("Expected unique invocation ID, got %q", out.ID)
		}
		seen[out.ID] = true

		echoed := out.Result.Data["args"].(map[string]interface{})
		if echoed["index"] != float64(i) {
			t.Errorf("Outcome %d holds wrong request's result: %v", i, echoed)
		}
	}
}

func TestPool_InvokeAll_MixedFailures(t *testing.T) {
	ch := testChannel()
	pool := NewPool(ch, 2, zerolog.Nop())

	requests := []Request{
		{Executable: modulePath("echo_args.sh"), Timeout: 10 * time.Second},
		{Executable: modulePath("garbage.sh"), Timeout: 10 * time.Second},
		{Executable: modulePath("fail.sh"), Timeout: 10 * time.Second},
	}

	outcomes := pool.InvokeAll(context.Background(), requests)

	if outcomes[0].Err != nil {
		t.Errorf("Expected first invocation to succeed, got: %v", outcomes[0].Err)
	}
	if !IsProtocol(outcomes[1].Err) {
		t.Errorf("Expected protocol error for garbage output, got: %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil {
		t.Errorf("Expected module-level failure without channel error, got: %v", outcomes[2].Err)
	}
	if outcomes[2].Result == nil || !outcomes[2].Result.Failed {
		t.Error("Expected failed result for fail.sh")
	}
}

func TestPool_InvokeAll_TimeoutIndependence(t *testing.T) {
	ch := testChannel()
	pool := NewPool(ch, 3, zerolog.Nop())

	requests := []Request{
		{Executable: modulePath("sleep.sh"), Timeout: 100 * time.Millisecond},
		{Executable: modulePath("echo_args.sh"), Timeout: 10 * time.Second},
		{Executable: modulePath("echo_args.sh"), Timeout: 10 * time.Second},
	}

	outcomes := pool.InvokeAll(context.Background(), requests)

	if !IsTimeout(outcomes[0].Err) {
		t.Errorf("Expected timeout for slow module, got: %v", outcomes[0].Err)
	}
	for i := 1; i < len(outcomes); i++ {
		if outcomes[i].Err != nil {
			t.Errorf("Expected sibling invocation %d unaffected by timeout, got: %v", i, outcomes[i].Err)
		}
	}
}

func TestPool_DefaultParallelism(t *testing.T) {
	pool := NewPool(testChannel(), 0, zerolog.Nop())
	if pool.maxParallel != 10 {
		t.Errorf("Expected default parallelism clamp, got %d", pool.maxParallel)
	}
}

func TestPool_InvokeAll_Empty(t *testing.T) {
	pool := NewPool(testChannel(), 4, zerolog.Nop())
	outcomes := pool.InvokeAll(context.Background(), nil)
	if len(outcomes) != 0 {
		t.Errorf("Expected no outcomes, got %d", len(outcomes))
	}
}
