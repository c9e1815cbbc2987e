package container_test

import (
	"testing"

	"ext2fsck/container"
)

func TestDequeFIFOOrder(t *testing.T) {
	d := container.NewDeque[int]()
	if !d.Empty() {
		t.Fatal("expected new deque to be empty")
	}
	d.PushBack(1)
	d.PushBack(2)
	d.PushBack(3)

	if got, want := d.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	for _, want := range []int{1, 2, 3} {
		if got := d.PopFront(); got != want {
			t.Errorf("PopFront() = %d, want %d", got, want)
		}
	}
	if !d.Empty() {
		t.Fatal("expected deque to be empty after draining")
	}
}
