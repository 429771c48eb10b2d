package embedding

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilaritySelf(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0},
		{0.3, -0.7, 2.1, 0.002},
		MockVector(64, 42),
	}
	for _, v := range vectors {
		sim, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("CosineSimilarity(v, v) error: %v", err)
		}
		if math.Abs(sim-1.0) > 1e-9 {
			t.Errorf("CosineSimilarity(v, v) = %v, want 1.0", sim)
		}
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := MockVector(32, 1)
	b := MockVector(32, 2)

	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
	if ab < -1.0 || ab > 1.0 {
		t.Errorf("similarity %v outside [-1, 1]", ab)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Errorf("orthogonal similarity = %v, want 0", sim)
	}

	sim, err = CosineSimilarity([]float64{1, 0}, []float64{-1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("opposite similarity = %v, want -1", sim)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	_, err := CosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3})
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("got %v, want ErrZeroVector", err)
	}

	_, err = CosineSimilarity(nil, nil)
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("empty vectors: got %v, want ErrZeroVector", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vectors := [][]float64{
		{},
		{0},
		{1.5, -2.25, 3.14159265358979, 1e-300, -1e300},
		{math.SmallestNonzeroFloat64, math.MaxFloat64, math.Inf(1), math.Inf(-1)},
		MockVector(1536, 7),
	}

	for _, v := range vectors {
		got, err := Decode(Encode(v))
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if len(got) != len(v) {
			t.Fatalf("round-trip length %d, want %d", len(got), len(v))
		}
		for i := range v {
			// Bit-exact comparison; NaN would need Float64bits but we never
			// store NaN components.
			if got[i] != v[i] {
				t.Errorf("component %d: %v != %v", i, got[i], v[i])
			}
		}
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, 13)); err == nil {
		t.Error("Decode accepted buffer that is not a multiple of 8 bytes")
	}
}
