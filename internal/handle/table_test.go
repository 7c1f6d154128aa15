package handle

import (
	"sync"
	"testing"
)

// TestTableLifecycle tests put, get and take.
func TestTableLifecycle(t *testing.T) {
	tbl := NewTable[string]()

	a := tbl.Put("a")
	b := tbl.Put("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("bad handles %d, %d", a, b)
	}

	if v, ok := tbl.Get(a); !ok || v != "a" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	if v, ok := tbl.Take(a); !ok || v != "a" {
		t.Errorf("Take(a) = %q, %v", v, ok)
	}
	if _, ok := tbl.Get(a); ok {
		t.Error("handle still live after Take")
	}
	if _, ok := tbl.Take(a); ok {
		t.Error("second Take should fail")
	}
	if _, ok := tbl.Get(0); ok {
		t.Error("zero handle should never resolve")
	}

	c := tbl.Put("c")
	if c == a {
		t.Error("handles must not be reused")
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d", tbl.Len())
	}
}

// TestTableConcurrent tests concurrent access.
func TestTableConcurrent(t *testing.T) {
	tbl := NewTable[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := tbl.Put(i*1000 + j)
				if v, ok := tbl.Take(h); !ok || v != i*1000+j {
					t.Errorf("Take(%d) = %d, %v", h, v, ok)
				}
			}
		}(i)
	}
	wg.Wait()
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d", tbl.Len())
	}
}
