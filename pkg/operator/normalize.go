package operator

import (
	"fmt"
	"math"

	"github.com/aretw0/coupler/pkg/domain"
)

// Normalizer turns per-source-particle reaction rates into absolute rates.
type Normalizer interface {
	Normalize(rates *domain.ReactionRates, sourceRate float64) error
}

// SourceRateNormalizer multiplies rates by the source rate in particles/s.
type SourceRateNormalizer struct{}

// Normalize scales rates in place.
func (SourceRateNormalizer) Normalize(rates *domain.ReactionRates, sourceRate float64) error {
	if sourceRate < 0 || math.IsNaN(sourceRate) || math.IsInf(sourceRate, 0) {
		return fmt.Errorf("invalid source rate %v", sourceRate)
	}
	rates.Scale(sourceRate)
	return nil
}
