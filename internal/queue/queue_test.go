package queue

import (
	"context"
	"testing"
	"time"
)

func TestPush_DropOldestWhenFull(t *testing.T) {
	q := New[int](2)
	q.Push(1)
	q.Push(2)
	q.Push(3) // evicts 1

	ctx := context.Background()
	v, ok := q.Pop(ctx)
	if !ok || v != 2 {
		t.Fatalf("expected 2, got %d (ok=%v)", v, ok)
	}
	v, ok = q.Pop(ctx)
	if !ok || v != 3 {
		t.Fatalf("expected 3, got %d (ok=%v)", v, ok)
	}

	dropped, delivered := q.Stats()
	if dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
	if delivered != 2 {
		t.Errorf("expected 2 delivered, got %d", delivered)
	}
}

func TestPush_NeverBlocks(t *testing.T) {
	q := New[int](1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.Push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked under a full queue with no consumer")
	}
}

func TestPop_BlocksUntilPush(t *testing.T) {
	q := New[int](1)
	result := make(chan int, 1)
	go func() {
		v, ok := q.Pop(context.Background())
		if !ok {
			result <- -1
			return
		}
		result <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestPop_WakesOnClose(t *testing.T) {
	q := New[int](1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Pop to return false after Close on an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Close")
	}
}

func TestPop_DrainsBeforeClosedSentinel(t *testing.T) {
	q := New[int](2)
	q.Push(1)
	q.Push(2)
	q.Close()

	ctx := context.Background()
	v, ok := q.Pop(ctx)
	if !ok || v != 1 {
		t.Fatalf("expected 1, got %d (ok=%v)", v, ok)
	}
	v, ok = q.Pop(ctx)
	if !ok || v != 2 {
		t.Fatalf("expected 2, got %d (ok=%v)", v, ok)
	}
	_, ok = q.Pop(ctx)
	if ok {
		t.Error("expected false once drained and closed")
	}
}

func TestPop_RespectsContextCancellation(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Pop to return false on cancelled context")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on context cancellation")
	}
}

func TestPush_NoOpAfterClose(t *testing.T) {
	q := New[int](2)
	q.Close()
	q.Push(1)

	if q.Len() != 0 {
		t.Errorf("expected 0 items after push-after-close, got %d", q.Len())
	}
}

// TestDropPlusDeliveredEqualsPushed is the literal invariant from spec.md §8
// invariant 4: count(dropped) + count(delivered) = count(pushed).
func TestDropPlusDeliveredEqualsPushed(t *testing.T) {
	q := New[int](1)
	const pushed = 500

	go func() {
		for i := 0; i < pushed; i++ {
			q.Push(i)
			time.Sleep(time.Microsecond)
		}
		q.Close()
	}()

	ctx := context.Background()
	var lastSeen = -1
	for {
		v, ok := q.Pop(ctx)
		if !ok {
			break
		}
		if v <= lastSeen {
			t.Fatalf("non-monotonic delivery: saw %d after %d", v, lastSeen)
		}
		lastSeen = v
	}

	dropped, delivered := q.Stats()
	if dropped+delivered != pushed {
		t.Errorf("dropped(%d) + delivered(%d) != pushed(%d)", dropped, delivered, pushed)
	}
}
