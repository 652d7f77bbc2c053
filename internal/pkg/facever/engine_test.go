package facever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/emre/presentia/internal/pkg/faceclient"
)

type fakeExtractor struct {
	extract  *faceclient.ExtractResult
	err      error
	liveness *faceclient.LivenessResult
}

func (f *fakeExtractor) Extract(ctx context.Context, imageBase64 string) (*faceclient.ExtractResult, error) {
	return f.extract, f.err
}

func (f *fakeExtractor) Liveness(ctx context.Context, imageBase64 string) (*faceclient.LivenessResult, error) {
	if f.liveness == nil {
		return nil, errors.New("liveness unavailable")
	}
	return f.liveness, nil
}

func (f *fakeExtractor) Health(ctx context.Context) error { return nil }

func TestSimilarityIdenticalVectors(t *testing.T) {
	v := []float64{0.5, -0.3, 0.8}
	score, err := Similarity(v, v)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if score != 1.0 {
		t.Errorf("identical vectors: score %v, want exactly 1.0", score)
	}
}

func TestSimilaritySelfIsMaximal(t *testing.T) {
	vectors := [][]float64{
		{0.5, 0.5},
		{0.123456789, -0.987654321, 0.31337},
		{1e-3, 2e-3, 3e-3, 4e-3},
	}
	for _, v := range vectors {
		score, err := Similarity(v, v)
		if err != nil {
			t.Fatalf("Similarity(%v): %v", v, err)
		}
		if score != 1.0 {
			t.Errorf("Similarity(%v, same) = %v, want exactly 1.0", v, score)
		}
	}
}

func TestSimilarityOppositeVectors(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{-1, 0, 0}
	score, err := Similarity(a, b)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if math.Abs(score) > 1e-9 {
		t.Errorf("opposite vectors: score %v, want 0", score)
	}
}

func TestSimilarityIsSymmetric(t *testing.T) {
	a := []float64{0.2, 0.7, -0.1, 0.4}
	b := []float64{-0.3, 0.5, 0.9, 0.1}

	ab, err := Similarity(a, b)
	if err != nil {
		t.Fatalf("Similarity(a, b): %v", err)
	}
	ba, err := Similarity(b, a)
	if err != nil {
		t.Fatalf("Similarity(b, a): %v", err)
	}
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("asymmetric: Similarity(a,b)=%v Similarity(b,a)=%v", ab, ba)
	}
}

func TestSimilarityRejectsBadInput(t *testing.T) {
	cases := map[string][2][]float64{
		"length mismatch": {{1, 2}, {1, 2, 3}},
		"empty":           {{}, {}},
		"zero vector":     {{0, 0}, {1, 1}},
	}
	for name, pair := range cases {
		if _, err := Similarity(pair[0], pair[1]); !errors.Is(err, ErrDimensions) {
			t.Errorf("%s: got %v, want ErrDimensions", name, err)
		}
	}
}

func TestVerifyThresholdBoundaryIsInclusive(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, NewThreshold(1.0))

	v := []float64{0.5, 0.5}
	result, err := engine.Verify(v, v)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Matched {
		t.Errorf("score %v at threshold 1.0 should match", result.Score)
	}
}

func TestVerifyBelowThreshold(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, NewThreshold(0.99))

	result, err := engine.Verify([]float64{1, 0}, []float64{0, 1})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Matched {
		t.Errorf("orthogonal vectors matched at score %v", result.Score)
	}
	if result.Mode != ModeFull {
		t.Errorf("mode = %v, want full", result.Mode)
	}
}

func TestVerifyDegradedNeverMatches(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, NewThreshold(0.0))
	engine.SetMode(ModeDegraded)

	v := []float64{1, 1}
	result, err := engine.Verify(v, v)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Matched {
		t.Error("degraded engine reported a match")
	}
	if result.Mode != ModeDegraded {
		t.Errorf("mode = %v, want degraded", result.Mode)
	}
	if result.Warning == "" {
		t.Error("degraded result should carry a warning")
	}
}

func TestThresholdRetuneWithoutRestart(t *testing.T) {
	threshold := NewThreshold(0.995)
	engine := NewEngine(&fakeExtractor{}, threshold)

	// Mapped similarity of these two is ~0.9903: below 0.995, above 0.9.
	a := []float64{1, 0.2}
	b := []float64{1, 0}

	high, err := engine.Verify(a, b)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	threshold.Set(0.9)
	low, err := engine.Verify(a, b)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if high.Matched || !low.Matched {
		t.Errorf("retune ineffective: high=%v low=%v score=%v", high.Matched, low.Matched, low.Score)
	}
}

func TestExtractDescriptorFaceCounts(t *testing.T) {
	ctx := context.Background()

	none := NewEngine(&fakeExtractor{extract: &faceclient.ExtractResult{FacesDetected: 0}}, NewThreshold(0.6))
	if _, err := none.ExtractDescriptor(ctx, "img"); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("zero faces: got %v, want ErrNoFaceDetected", err)
	}

	many := NewEngine(&fakeExtractor{extract: &faceclient.ExtractResult{FacesDetected: 2}}, NewThreshold(0.6))
	if _, err := many.ExtractDescriptor(ctx, "img"); !errors.Is(err, ErrMultipleFaces) {
		t.Errorf("two faces: got %v, want ErrMultipleFaces", err)
	}
}

func TestExtractDescriptorFailureFlipsDegraded(t *testing.T) {
	engine := NewEngine(&fakeExtractor{err: errors.New("connection refused")}, NewThreshold(0.6))

	if _, err := engine.ExtractDescriptor(context.Background(), "img"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if engine.Mode() != ModeDegraded {
		t.Error("engine should degrade after an extraction failure")
	}
}

func TestVerifyImageAttachesLivenessWarning(t *testing.T) {
	v := []float64{0.4, 0.6, -0.2}
	extractor := &fakeExtractor{
		extract:  &faceclient.ExtractResult{Descriptor: v, FacesDetected: 1},
		liveness: &faceclient.LivenessResult{IsLive: false},
	}
	engine := NewEngine(extractor, NewThreshold(0.9))

	result, err := engine.VerifyImage(context.Background(), "img", v)
	if err != nil {
		t.Fatalf("VerifyImage: %v", err)
	}
	if !result.Matched {
		t.Errorf("identical descriptor should match, score %v", result.Score)
	}
	if result.Warning == "" {
		t.Error("failed liveness probe should attach a warning")
	}
}
