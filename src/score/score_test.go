package score

import "testing"

func TestReducePure(t *testing.T) {
	r := NewUniformReducer(25)

	vector := make([]float64, 25)
	for i := range vector {
		vector[i] = float64(i) / 25
	}

	first, err := r.Reduce(vector)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		again, err := r.Reduce(vector)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("Reduce is not pure: %v != %v", again, first)
		}
	}
}

func TestReduceBounds(t *testing.T) {
	r := NewUniformReducer(4)

	cases := [][]float64{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{-5, 10, 0.5, 0.5},
		{100, 100, 100, 100},
	}

	for _, vector := range cases {
		got, err := r.Reduce(vector)
		if err != nil {
			t.Fatal(err)
		}
		if got < 0 || got > 1 {
			t.Fatalf("Reduce(%v) = %v out of [0,1]", vector, got)
		}
	}
}

func TestTruncateNotRound(t *testing.T) {
	cases := []struct {
		in  float64
		out float64
	}{
		{0.1234567, 0.123456},
		{0.9999999, 0.999999},
		{0.5, 0.5},
		{0.6180339887, 0.618033},
	}

	for _, c := range cases {
		if got := Truncate(c.in); got != c.out {
			t.Fatalf("Truncate(%v) = %v, want %v", c.in, got, c.out)
		}
	}
}

func TestWeightedReduce(t *testing.T) {
	r, err := NewWeightedReducer([]float64{1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Reduce([]float64{0.25, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}

	if got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestWeightedReducerRejectsBadWeights(t *testing.T) {
	if _, err := NewWeightedReducer([]float64{1, -1}); err == nil {
		t.Fatal("negative weight should be rejected")
	}
	if _, err := NewWeightedReducer([]float64{0, 0}); err == nil {
		t.Fatal("all-zero weights should be rejected")
	}
}

func TestReduceDimensionMismatch(t *testing.T) {
	r := NewUniformReducer(25)
	if _, err := r.Reduce([]float64{1, 2, 3}); err == nil {
		t.Fatal("dimension mismatch should be rejected")
	}
}
