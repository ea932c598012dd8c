package ring

import (
	"fmt"
	"testing"
)

func TestBuffer_PushWithinCapacity(t *testing.T) {
	b := New[int](4)
	for i := range 3 {
		if evicted := b.Push(i); evicted {
			t.Fatalf("Push(%d) evicted before buffer was full", i)
		}
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	got := b.Items()
	want := []int{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Items()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuffer_FIFOEviction(t *testing.T) {
	b := New[string](1000)
	for i := range 1001 {
		b.Push(fmt.Sprintf("L%d", i))
	}

	if b.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", b.Len())
	}
	if got := b.At(0); got != "L1" {
		t.Errorf("oldest = %q, want L1", got)
	}
	if got := b.At(b.Len() - 1); got != "L1000" {
		t.Errorf("newest = %q, want L1000", got)
	}
}

func TestBuffer_Last(t *testing.T) {
	b := New[int](3)
	for i := range 5 {
		b.Push(i)
	}

	tests := []struct {
		name string
		n    int
		want []int
	}{
		{"zero", 0, nil},
		{"one", 1, []int{4}},
		{"all", 3, []int{2, 3, 4}},
		{"more than stored", 10, []int{2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Last(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("Last(%d) = %v, want %v", tt.n, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Last(%d)[%d] = %d, want %d", tt.n, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", b.Len())
	}
	b.Push(7)
	if got := b.At(0); got != 7 {
		t.Errorf("At(0) after Clear+Push = %d, want 7", got)
	}
}

func TestBuffer_ItemsIsCopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	items := b.Items()
	items[0] = 99
	if b.At(0) != 1 {
		t.Error("mutating Items() result changed the buffer")
	}
}

func TestNew_NonPositiveCapacity(t *testing.T) {
	b := New[int](0)
	if b.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", b.Cap())
	}
}
