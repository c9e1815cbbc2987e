package container_test

import (
	"testing"

	"ext2fsck/container"
)

func TestListAddAndAt(t *testing.T) {
	l := container.NewList[int]()
	l.Add(1)
	l.Add(2)
	l.Add(3)

	if got, want := l.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if got, want := l.At(1), 2; got != want {
		t.Errorf("At(1) = %d, want %d", got, want)
	}
}

func TestListEach(t *testing.T) {
	l := container.NewList[string]()
	l.Add("a")
	l.Add("b")

	var seen []string
	l.Each(func(s string) { seen = append(seen, s) })

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("Each produced %v", seen)
	}
}
