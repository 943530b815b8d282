package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/profile"
)

func newArtifact(kind core.ContentKind, title string, relevance float64) core.Artifact {
	return core.NewArtifact("wp-1", kind, title, "source", relevance)
}

func TestEvaluateRejectsEmptyCandidates(t *testing.T) {
	p := New(nil, "", nil)
	_, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, nil, &profile.Profile{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoResults)
}

func TestEvaluateDriverSkipsWhenOnlyVideoAvailable(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{newArtifact(core.ContentVideo, "A scenic view", 8)}
	prof := &profile.Profile{IsDriver: true}

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, candidates, prof)
	require.NoError(t, err)
	assert.True(t, decision.SafetySkipped)
	assert.Nil(t, decision.Selected)
	assert.Zero(t, decision.Confidence)
}

func TestEvaluateDriverExcludesVideoButKeepsOthers(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{
		newArtifact(core.ContentVideo, "Scenic drone footage", 9),
		newArtifact(core.ContentMusic, "Local folk song", 6),
	}
	prof := &profile.Profile{IsDriver: true}

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, candidates, prof)
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, core.ContentMusic, decision.Selected.Kind)
}

func TestEvaluateExcludeTopicsFiltersAllCandidates(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{
		newArtifact(core.ContentText, "War Memorial history", 7),
	}
	prof := &profile.Profile{ExcludeTopics: []string{"war"}}

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, candidates, prof)
	require.NoError(t, err)
	assert.True(t, decision.SafetySkipped)
}

func TestEvaluateSingleCandidateShortCircuits(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{newArtifact(core.ContentText, "Local history", 4)}
	prof := &profile.Profile{AgeBracket: profile.AgeAdult}

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, candidates, prof)
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, "Local history", decision.Selected.Title)
	assert.Equal(t, 1.0, decision.Confidence)
}

func TestEvaluateDeterministicPrefersHigherWeightedScore(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{
		newArtifact(core.ContentVideo, "Generic clip", 5),
		newArtifact(core.ContentText, "Ancient ruins nearby", 5),
	}
	waypoint := core.Waypoint{ID: "wp-1", Name: "Old Fortress"}
	prof := &profile.Profile{AgeBracket: profile.AgeAdult}

	decision, err := p.Evaluate(context.Background(), waypoint, candidates, prof)
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	// TEXT gets the historical-pattern bonus ("old" appears in "Old Fortress");
	// neither title contains the waypoint name, and VIDEO gets no bonus here.
	assert.Equal(t, core.ContentText, decision.Selected.Kind)
}

// Tie-break rule 3: equal score and equal relevance score fall through to
// Worker priority, lower sorting first.
func TestEvaluateTieBreaksOnWorkerPriority(t *testing.T) {
	p := New(nil, "", nil)
	lowPriority := newArtifact(core.ContentMusic, "Song", 5).WithMetadataValue(core.MetaWorkerPriority, 20)
	highPriority := newArtifact(core.ContentText, "Story", 5).WithMetadataValue(core.MetaWorkerPriority, 10)

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, []core.Artifact{lowPriority, highPriority}, &profile.Profile{})
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, core.ContentText, decision.Selected.Kind)
}

// Tie-break rule 4: equal score, equal relevance, equal (absent) worker
// priority falls through to kind order TEXT < MUSIC < VIDEO.
func TestEvaluateTieBreaksOnKindOrder(t *testing.T) {
	p := New(nil, "", nil)
	video := newArtifact(core.ContentVideo, "Clip", 5)
	music := newArtifact(core.ContentMusic, "Song", 5)

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, []core.Artifact{video, music}, &profile.Profile{})
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, core.ContentMusic, decision.Selected.Kind)
}

func TestEvaluateChildBonusForFunTitle(t *testing.T) {
	p := New(nil, "", nil)
	candidates := []core.Artifact{
		newArtifact(core.ContentVideo, "Fun kids adventure", 5),
		newArtifact(core.ContentMusic, "Serious documentary soundtrack", 5),
	}
	prof := &profile.Profile{AgeBracket: profile.AgeChild}

	decision, err := p.Evaluate(context.Background(), core.Waypoint{ID: "wp-1"}, candidates, prof)
	require.NoError(t, err)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, core.ContentVideo, decision.Selected.Kind)
}
