package queue

import (
	"sync"
	"testing"
)

func TestQueue_New(t *testing.T) {
	q := New[int]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}

	q = New(1, 2, 3)
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[int]()

	if _, ok := q.Pop(); ok {
		t.Error("expected ok=false on empty queue")
	}

	q.Push(0, 7)
	v, ok := q.Pop()
	if !ok || v != 0 {
		t.Errorf("expected (0, true), got (%d, %v)", v, ok)
	}
	v, ok = q.Pop()
	if !ok || v != 7 {
		t.Errorf("expected (7, true), got (%d, %v)", v, ok)
	}
	if !q.Empty() {
		t.Error("expected empty queue after popping all items")
	}
}

func TestQueue_Rotate(t *testing.T) {
	q := New("a", "b", "c")

	want := []string{"a", "b", "c", "a", "b"}
	for i, w := range want {
		v, ok := q.Rotate()
		if !ok || v != w {
			t.Errorf("rotate %d: expected (%s, true), got (%s, %v)", i, w, v, ok)
		}
	}
	if q.Len() != 3 {
		t.Errorf("expected length 3 after rotating, got %d", q.Len())
	}

	empty := New[string]()
	if _, ok := empty.Rotate(); ok {
		t.Error("expected ok=false rotating an empty queue")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New(1, 2, 3)
	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	q.Push(4)
	if q.Len() != 1 {
		t.Errorf("expected length 1 after push, got %d", q.Len())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			q.Push(v)
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected length 100, got %d", q.Len())
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Rotate()
		}()
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected length 100 after rotating, got %d", q.Len())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New(1, 2, 3)

	items := q.Drain()
	if len(items) != 3 || items[0] != 1 || items[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", items)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}

	q.Push(4)
	if got := q.Drain(); len(got) != 1 || got[0] != 4 {
		t.Errorf("expected [4], got %v", got)
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("expected nothing, got %v", got)
	}
}
