// Package facever decides whether a freshly captured face matches an enrolled
// descriptor. Descriptor extraction is delegated to the face service; the
// similarity decision is computed locally against a hot-reloadable threshold.
package facever

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/emre/presentia/internal/pkg/faceclient"
)

// Engine errors. Expected negative outcomes (a wrong face) are returned as a
// Result, not as errors; these cover the distinct failure shapes around them.
var (
	ErrNoFaceDetected = errors.New("facever: no face detected")
	ErrMultipleFaces  = errors.New("facever: multiple faces detected")
	ErrUnavailable    = errors.New("facever: extraction model unavailable")
	ErrDimensions     = errors.New("facever: descriptor length mismatch")
)

// Mode reports the engine's capability. Degraded means extraction is down and
// only a bare "plausible face present" probe is possible; a Degraded result
// must never satisfy a mandatory gate.
type Mode int32

const (
	ModeFull Mode = iota
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeDegraded {
		return "degraded"
	}
	return "full"
}

// Result is the outcome of a verification.
type Result struct {
	Matched bool
	Score   float64
	Mode    Mode
	// Warning is set when the result carries reduced assurance, e.g. the
	// engine ran degraded or liveness could not be checked.
	Warning string
}

// Extractor is the slice of the face service the engine needs.
type Extractor interface {
	Extract(ctx context.Context, imageBase64 string) (*faceclient.ExtractResult, error)
	Liveness(ctx context.Context, imageBase64 string) (*faceclient.LivenessResult, error)
	Health(ctx context.Context) error
}

// Threshold holds the match threshold behind an atomic so operators can retune
// without a restart. Verify reads it once per call.
type Threshold struct {
	bits atomic.Uint64
}

// NewThreshold creates a threshold holder with an initial value.
func NewThreshold(v float64) *Threshold {
	t := &Threshold{}
	t.Set(v)
	return t
}

// Set replaces the threshold.
func (t *Threshold) Set(v float64) {
	t.bits.Store(math.Float64bits(v))
}

// Get returns the current threshold.
func (t *Threshold) Get() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Engine extracts descriptors and scores them against enrolled ones.
type Engine struct {
	extractor Extractor
	threshold *Threshold
	mode      atomic.Int32
}

// NewEngine creates an engine in Full mode.
func NewEngine(extractor Extractor, threshold *Threshold) *Engine {
	return &Engine{extractor: extractor, threshold: threshold}
}

// Mode returns the current capability.
func (e *Engine) Mode() Mode {
	return Mode(e.mode.Load())
}

// SetMode switches the capability flag. Bootstrap flips to Degraded when the
// face service health probe fails, and back once it recovers.
func (e *Engine) SetMode(m Mode) {
	e.mode.Store(int32(m))
}

// Threshold exposes the holder so an operator surface can retune it.
func (e *Engine) Threshold() *Threshold {
	return e.threshold
}

// ExtractDescriptor turns a captured image into a descriptor. Zero faces and
// multiple faces fail distinctly; the caller must reject ambiguity, not guess.
func (e *Engine) ExtractDescriptor(ctx context.Context, imageBase64 string) ([]float64, error) {
	if e.Mode() == ModeDegraded {
		return nil, ErrUnavailable
	}

	res, err := e.extractor.Extract(ctx, imageBase64)
	if err != nil {
		e.SetMode(ModeDegraded)
		return nil, ErrUnavailable
	}

	switch {
	case res.FacesDetected == 0:
		return nil, ErrNoFaceDetected
	case res.FacesDetected > 1:
		return nil, ErrMultipleFaces
	}

	return res.Descriptor, nil
}

// Similarity maps cosine similarity into [0, 1]. It is symmetric and reaches
// 1.0 only for identical directions.
func Similarity(a, b []float64) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrDimensions
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, ErrDimensions
	}

	// Single sqrt over the product keeps Similarity(v, v) at exactly 1:
	// dot and both norms come from the same summation, and a correctly
	// rounded sqrt of s*s returns s.
	cos := dot / math.Sqrt(normA*normB)

	// Clamp against floating point drift before mapping [-1,1] -> [0,1].
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}

	return (1 + cos) / 2, nil
}

// Verify scores a captured descriptor against the enrolled one. Matched holds
// iff score >= threshold; the boundary is inclusive.
func (e *Engine) Verify(captured, enrolled []float64) (Result, error) {
	if e.Mode() == ModeDegraded {
		return Result{
			Mode:    ModeDegraded,
			Warning: "face engine degraded: descriptor comparison unavailable",
		}, nil
	}

	score, err := Similarity(captured, enrolled)
	if err != nil {
		return Result{}, err
	}

	threshold := e.threshold.Get()

	return Result{
		Matched: score >= threshold,
		Score:   score,
		Mode:    ModeFull,
	}, nil
}

// VerifyImage extracts a descriptor from the image and verifies it, attaching
// the advisory liveness warning when the heuristic does not pass.
func (e *Engine) VerifyImage(ctx context.Context, imageBase64 string, enrolled []float64) (Result, error) {
	captured, err := e.ExtractDescriptor(ctx, imageBase64)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Result{
				Mode:    ModeDegraded,
				Warning: "face engine degraded: descriptor comparison unavailable",
			}, nil
		}
		return Result{}, err
	}

	result, err := e.Verify(captured, enrolled)
	if err != nil {
		return Result{}, err
	}

	if live, lerr := e.extractor.Liveness(ctx, imageBase64); lerr == nil && !live.IsLive {
		result.Warning = "liveness heuristic did not pass"
	}

	return result, nil
}
