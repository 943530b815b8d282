package profile

import "github.com/trailmind/dispatch/core"

// Weights returns the profile's content-kind weight map, computed once
// per tour and cached on first call. Base weight is 1.0 for every kind; adjustments
// compose multiplicatively except the is_driver VIDEO override, which is
// a hard zero regardless of other adjustments. A *Profile is shared by
// every concurrent dispatch in a tour, so the cache is built behind a
// sync.Once rather than the plain bool the single-threaded case would
// suggest.
func (p *Profile) Weights() map[core.ContentKind]float64 {
	p.weightsInit.Do(func() {
		w := map[core.ContentKind]float64{
			core.ContentVideo: 1.0,
			core.ContentMusic: 1.0,
			core.ContentText:  1.0,
		}

		switch p.AgeBracket {
		case AgeChild:
			w[core.ContentVideo] *= 1.3
			w[core.ContentText] *= 0.7
		case AgeSenior:
			w[core.ContentText] *= 1.2
			w[core.ContentVideo] *= 0.9
		}

		if p.HasAccessibility(AccessibilityVisual) {
			w[core.ContentVideo] *= 0.4
			w[core.ContentMusic] *= 1.3
			w[core.ContentText] *= 1.1
		}
		if p.HasAccessibility(AccessibilityHearing) {
			w[core.ContentMusic] *= 0.4
			w[core.ContentVideo] *= 1.1
			w[core.ContentText] *= 1.2
		}

		if p.IsDriver {
			w[core.ContentMusic] *= 1.2
			w[core.ContentVideo] = 0 // hard override, applied last
		}

		p.weights = w
	})
	return p.weights
}

// WeightFor returns the cached weight for kind. A kind unknown to the
// profile (an extensible kind) gets the base weight of 1.0, since an
// unrecognized kind hasn't been penalized by any rule above.
func (p *Profile) WeightFor(kind core.ContentKind) float64 {
	w := p.Weights()
	if v, ok := w[kind]; ok {
		return v
	}
	return 1.0
}

// CognitivePenalty returns the duration-based score penalty
// (multiplicative, applied at selection time rather than baked into the
// weight map) for an Artifact with the given duration, when the profile
// declares a COGNITIVE accessibility need.
func (p *Profile) CognitivePenalty(durationSeconds float64, hasDuration bool) float64 {
	if !p.HasAccessibility(AccessibilityCognitive) {
		return 1.0
	}
	if hasDuration && durationSeconds > 180 {
		return 0.7
	}
	return 1.0
}
