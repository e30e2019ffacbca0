package worker

import (
	"context"
	"math"

	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/types"
	"go.uber.org/zap"
)

// Comparer is the face verification model: it returns a distance between a crop
// and one reference image. Lower means more similar.
type Comparer interface {
	Compare(ctx context.Context, crop types.FaceCrop, ref corpus.Reference) (float64, error)
}

// Result describes one verification.
type Result struct {
	Verdict types.Verdict
	// Distance is the matching distance for Recognized, otherwise the best
	// distance seen (+Inf when nothing could be compared).
	Distance    float64
	Reference   string
	Comparisons int
	Failures    int
}

// Verifier checks a crop against every reference in the corpus, in order.
type Verifier struct {
	Source    corpus.Source
	Comparer  Comparer
	Threshold float64
	Logger    *zap.Logger
}

// Verify returns Recognized as soon as a reference is closer than the
// threshold. A reference that fails to compare counts as a non-match, so every
// failure leans towards NotRecognized. The only error returned is ctx's, when
// verification is abandoned during shutdown.
func (v *Verifier) Verify(ctx context.Context, crop types.FaceCrop) (Result, error) {
	res := Result{Verdict: types.NotRecognized, Distance: math.Inf(1)}

	refs, err := v.Source.References(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		v.Logger.Error("🚨 Failed to enumerate reference corpus", zap.Error(err))
		return res, nil
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Comparisons++
		dist, err := v.Comparer.Compare(ctx, crop, ref)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failures++
			v.Logger.Error("🚨 Face comparison failed", zap.String("reference", ref.Name), zap.Error(err))
			continue
		}

		if dist < v.Threshold {
			v.Logger.Info("✅ User recognized", zap.String("reference", ref.Name), zap.Float64("distance", dist))
			res.Verdict = types.Recognized
			res.Distance = dist
			res.Reference = ref.Name
			return res, nil
		}
		v.Logger.Debug("❌ Reference did not match", zap.String("reference", ref.Name), zap.Float64("distance", dist))
		if dist < res.Distance {
			res.Distance = dist
			res.Reference = ref.Name
		}
	}
	return res, nil
}

// CosineDistance returns 1 - cos(a, b). Zero or mismatched vectors are treated
// as maximally distant (1.0).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}
	var dot, sumA, sumB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		sumA += x * x
		sumB += y * y
	}
	if sumA == 0 || sumB == 0 {
		return 1.0
	}
	return 1.0 - (dot / (math.Sqrt(sumA) * math.Sqrt(sumB)))
}
