package prng

import "testing"

func TestNew_Deterministic(t *testing.T) {
	a := New("job-abc")
	b := New("job-abc")

	for i := 0; i < 100; i++ {
		af := a.Float64()
		bf := b.Float64()
		if af != bf {
			t.Fatalf("draw %d diverged: %v != %v", i, af, bf)
		}
	}
}

func TestNew_DistinctJobsDiverge(t *testing.T) {
	a := New("job-1")
	b := New("job-2")

	same := 0
	for i := 0; i < 20; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 20 {
		t.Fatalf("distinct job ids produced identical streams")
	}
}

func TestUniform_Bounds(t *testing.T) {
	s := New("job-uniform")
	for i := 0; i < 1000; i++ {
		v := s.Uniform(0.6, 1.5)
		if v < 0.6 || v >= 1.5 {
			t.Fatalf("draw %v out of [0.6, 1.5)", v)
		}
	}
}

func TestWeighted_RespectsZeroWeight(t *testing.T) {
	s := New("job-weighted")
	for i := 0; i < 200; i++ {
		idx := s.Weighted([]float64{1, 0, 0})
		if idx != 0 {
			t.Fatalf("expected only bucket 0, got %d", idx)
		}
	}
}

func TestShuffleInts_Permutation(t *testing.T) {
	s := New("job-shuffle")
	xs := []int{0, 1, 2, 3, 4, 5, 6}
	orig := append([]int{}, xs...)
	s.ShuffleInts(xs)

	seen := make(map[int]bool)
	for _, v := range xs {
		seen[v] = true
	}
	if len(seen) != len(orig) {
		t.Fatalf("shuffle lost or duplicated elements: %v", xs)
	}
}
