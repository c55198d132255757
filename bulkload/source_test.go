package bulkload

import "testing"

func TestSliceSourceYieldsInOrderThenEOF(t *testing.T) {
	keys := [][]byte{{1}, {2}, {3}}
	values := [][]byte{{10}, {20}, {30}}
	src := NewSliceSource(keys, values)

	for i := 0; i < 3; i++ {
		k, v, ok, err := src.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if !ok {
			t.Fatalf("Next() ok = false at index %d, want true", i)
		}
		if k[0] != keys[i][0] || v[0] != values[i][0] {
			t.Fatalf("Next() = (%v,%v), want (%v,%v)", k, v, keys[i], values[i])
		}
	}
	_, _, ok, err := src.Next()
	if err != nil {
		t.Fatalf("Next() at EOF: %v", err)
	}
	if ok {
		t.Fatal("Next() ok = true past the end of the slice")
	}
}

func TestSliceSourceEmpty(t *testing.T) {
	src := NewSliceSource(nil, nil)
	_, _, ok, err := src.Next()
	if err != nil {
		t.Fatalf("Next(): %v", err)
	}
	if ok {
		t.Fatal("Next() on an empty source returned ok = true")
	}
}
