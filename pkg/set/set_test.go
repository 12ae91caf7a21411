package set_test

import (
	"strings"
	"testing"

	"github.com/stateforward/go-fsm/pkg/set"
)

func TestSet(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		s := set.New("a", "b", "c", "a")
		if s.Size() != 3 {
			t.Errorf("Expected size 3, got %d", s.Size())
		}
		for _, item := range []string{"a", "b", "c"} {
			if !s.Contains(item) {
				t.Errorf("Expected set to contain %q", item)
			}
		}
	})

	t.Run("New returns independent sets", func(t *testing.T) {
		a := set.New[string]()
		b := set.New[string]()
		a.Add("x")
		if b.Contains("x") {
			t.Error("Expected sets built by New to be independent")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := set.New("test")
		s.Remove("test")
		s.Remove("missing")
		if s.Size() != 0 {
			t.Errorf("Expected size 0, got %d", s.Size())
		}
	})

	t.Run("Sorted", func(t *testing.T) {
		got := set.Sorted(set.New("moving", "dashing", "blink"))
		if strings.Join(got, ",") != "blink,dashing,moving" {
			t.Errorf("Unexpected order %v", got)
		}
	})

	t.Run("SortedFunc", func(t *testing.T) {
		type edge [2]string
		s := set.New(edge{"b", "a"}, edge{"a", "c"}, edge{"a", "b"})
		got := set.SortedFunc(s, func(x, y edge) int {
			if c := strings.Compare(x[0], y[0]); c != 0 {
				return c
			}
			return strings.Compare(x[1], y[1])
		})
		want := []edge{{"a", "b"}, {"a", "c"}, {"b", "a"}}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Unexpected order %v", got)
			}
		}
	})

	t.Run("Items", func(t *testing.T) {
		s := set.New(1, 2, 3)
		sum := 0
		for item := range s.Items() {
			sum += item
		}
		if sum != 6 {
			t.Errorf("Expected sum 6, got %d", sum)
		}
	})
}
