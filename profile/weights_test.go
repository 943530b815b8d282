package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailmind/dispatch/core"
)

func TestWeightsDefaultIsUnityForAdult(t *testing.T) {
	p := &Profile{AgeBracket: AgeAdult}
	w := p.Weights()
	assert.Equal(t, 1.0, w[core.ContentVideo])
	assert.Equal(t, 1.0, w[core.ContentMusic])
	assert.Equal(t, 1.0, w[core.ContentText])
}

func TestWeightsChildFavorsVideoOverText(t *testing.T) {
	p := &Profile{AgeBracket: AgeChild}
	w := p.Weights()
	assert.InDelta(t, 1.3, w[core.ContentVideo], 1e-9)
	assert.InDelta(t, 0.7, w[core.ContentText], 1e-9)
}

func TestWeightsSeniorFavorsTextOverVideo(t *testing.T) {
	p := &Profile{AgeBracket: AgeSenior}
	w := p.Weights()
	assert.InDelta(t, 1.2, w[core.ContentText], 1e-9)
	assert.InDelta(t, 0.9, w[core.ContentVideo], 1e-9)
}

func TestWeightsDriverZeroesVideoRegardlessOfOtherAdjustments(t *testing.T) {
	p := &Profile{AgeBracket: AgeChild, IsDriver: true, Accessibility: []Accessibility{AccessibilityVisual}}
	w := p.Weights()
	assert.Zero(t, w[core.ContentVideo], "video must be a hard zero for drivers regardless of other multipliers")
	assert.Greater(t, w[core.ContentMusic], 1.0)
}

func TestWeightsVisualAccessibilityPenalizesVideo(t *testing.T) {
	p := &Profile{Accessibility: []Accessibility{AccessibilityVisual}}
	w := p.Weights()
	assert.InDelta(t, 0.4, w[core.ContentVideo], 1e-9)
	assert.InDelta(t, 1.3, w[core.ContentMusic], 1e-9)
	assert.InDelta(t, 1.1, w[core.ContentText], 1e-9)
}

func TestWeightsHearingAccessibilityPenalizesMusic(t *testing.T) {
	p := &Profile{Accessibility: []Accessibility{AccessibilityHearing}}
	w := p.Weights()
	assert.InDelta(t, 0.4, w[core.ContentMusic], 1e-9)
	assert.InDelta(t, 1.1, w[core.ContentVideo], 1e-9)
	assert.InDelta(t, 1.2, w[core.ContentText], 1e-9)
}

// Weights are cached via sync.Once: a second call after the first must
// return the identical map, not recompute it.
func TestWeightsCachedAcrossCalls(t *testing.T) {
	p := &Profile{AgeBracket: AgeChild}
	first := p.Weights()
	second := p.Weights()
	assert.Equal(t, first, second)
}

func TestWeightForUnknownKindDefaultsToUnity(t *testing.T) {
	p := &Profile{AgeBracket: AgeAdult}
	assert.Equal(t, 1.0, p.WeightFor(core.ContentKind("PODCAST")))
}

func TestCognitivePenaltyAppliesOnlyWithCognitiveAccessibilityAndLongDuration(t *testing.T) {
	withCognitive := &Profile{Accessibility: []Accessibility{AccessibilityCognitive}}
	assert.Equal(t, 0.7, withCognitive.CognitivePenalty(300, true))
	assert.Equal(t, 1.0, withCognitive.CognitivePenalty(60, true))
	assert.Equal(t, 1.0, withCognitive.CognitivePenalty(300, false))

	withoutCognitive := &Profile{}
	assert.Equal(t, 1.0, withoutCognitive.CognitivePenalty(300, true))
}

func TestExcludesTopicIsCaseInsensitiveSubstring(t *testing.T) {
	p := &Profile{ExcludeTopics: []string{"War", ""}}
	assert.True(t, p.ExcludesTopic("World War II Memorial"))
	assert.False(t, p.ExcludesTopic("Peaceful garden"))
}
