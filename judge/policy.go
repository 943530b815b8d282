// Package judge implements the Selection Policy: given a Waypoint, 1..N
// candidate Artifacts, and a Profile, produce one Decision, with a
// deterministic scoring fallback when model adjudication is unavailable
// or inconclusive.
package judge

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/profile"
)

// Location-name substring patterns for the deterministic scoring bonuses.
var (
	historicalPatterns = []string{"museum", "memorial", "ancient", "old"}
	scenicPatterns     = []string{"view", "park", "beach", "mountain"}
	culturalPatterns   = []string{"theatre", "concert", "festival"}
	childTokens        = []string{"fun", "kids"}
	seniorTokens       = []string{"classic", "history"}
)

func matchesAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// kindOrder ranks content kinds for the tie-break's final criterion:
// TEXT < MUSIC < VIDEO, ties (extensible kinds) sorting last.
func kindOrder(k core.ContentKind) int {
	switch k {
	case core.ContentText:
		return 0
	case core.ContentMusic:
		return 1
	case core.ContentVideo:
		return 2
	default:
		return 3
	}
}

// workerPriority reads the scheduling priority the Orchestrator stamped
// onto a's Metadata (core.MetaWorkerPriority), defaulting to the lowest
// possible priority (sorts last) when absent — e.g. in tests that build
// Artifacts directly without going through a Worker Instance.
func workerPriority(a core.Artifact) int {
	if v, ok := a.Metadata[core.MetaWorkerPriority]; ok {
		if p, ok := v.(int); ok {
			return p
		}
	}
	return math.MaxInt32
}

// Policy is the Selection Policy. AIClient is optional; when nil, every
// Decision uses the deterministic scorer.
type Policy struct {
	AIClient core.AIClient
	Model    string
	Logger   core.Logger
}

// New builds a Policy. ai may be nil to skip model adjudication entirely.
func New(ai core.AIClient, model string, logger core.Logger) *Policy {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Policy{AIClient: ai, Model: model, Logger: logger}
}

// Evaluate produces a Decision for one Waypoint given its candidate
// Artifacts and the Profile. candidates must be non-empty.
func (p *Policy) Evaluate(ctx context.Context, waypoint core.Waypoint, candidates []core.Artifact, prof *profile.Profile) (core.Decision, error) {
	if len(candidates) == 0 {
		return core.Decision{}, fmt.Errorf("%w: no candidates to evaluate for waypoint %s", core.ErrNoResults, waypoint.ID)
	}

	decision := core.Decision{
		WaypointID: waypoint.ID,
		Candidates: candidates,
		Scores:     make(map[core.ContentKind]float64),
	}

	// Rule 1: safety — drivers never get VIDEO.
	survivors := candidates
	if prof.IsDriver {
		nonVideo := filterOutKind(candidates, core.ContentVideo)
		if len(nonVideo) == 0 {
			decision.SafetySkipped = true
			decision.Reasoning = "all available content is VIDEO, which is unsafe while driving; no safe content selected"
			decision.Confidence = 0
			return decision, nil
		}
		survivors = nonVideo
	}

	// Rule 2: exclude_topics filtering.
	survivors = filterExcluded(survivors, prof)
	if len(survivors) == 0 {
		decision.SafetySkipped = true
		decision.Reasoning = "every candidate matched an excluded topic"
		decision.Confidence = 0
		return decision, nil
	}

	// Single-candidate short-circuit.
	if len(survivors) == 1 {
		only := survivors[0]
		weight := prof.WeightFor(only.Kind)
		decision.Selected = &only
		decision.Scores[only.Kind] = only.RelevanceScore
		decision.Confidence = 1.0
		decision.Reasoning = fmt.Sprintf(
			"only %s content available - weight %.2f for this profile", only.Kind, weight)
		return decision, nil
	}

	// Multiple survivors: try optional LLM adjudication, fall back to
	// deterministic scoring on any failure.
	if p.AIClient != nil {
		if result, err := p.adjudicateWithModel(ctx, waypoint, survivors, prof); err == nil {
			return result, nil
		} else {
			p.Logger.Warn("llm adjudication failed, falling back to deterministic scoring",
				map[string]interface{}{"waypoint_id": waypoint.ID, "error": err.Error()})
		}
	}

	return p.deterministicDecision(waypoint, survivors, prof), nil
}

func filterOutKind(artifacts []core.Artifact, kind core.ContentKind) []core.Artifact {
	out := make([]core.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Kind != kind {
			out = append(out, a)
		}
	}
	return out
}

func filterExcluded(artifacts []core.Artifact, prof *profile.Profile) []core.Artifact {
	out := make([]core.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if prof.ExcludesTopic(a.Title) {
			continue
		}
		excluded := false
		for _, v := range a.Metadata {
			if s, ok := v.(string); ok && prof.ExcludesTopic(s) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, a)
		}
	}
	return out
}

// score computes the deterministic score for one Artifact: additive
// bonuses on top of the profile-weighted relevance score.
func score(a core.Artifact, waypoint core.Waypoint, prof *profile.Profile) float64 {
	base := a.RelevanceScore * prof.WeightFor(a.Kind)
	base *= prof.CognitivePenalty(a.DurationSeconds, a.HasDuration)

	titleLower := strings.ToLower(a.Title)
	if waypoint.Name != "" && strings.Contains(titleLower, strings.ToLower(waypoint.Name)) {
		base += 2.0
	}

	location := waypoint.Name
	if location == "" {
		location = waypoint.Address
	}

	if a.Kind == core.ContentText && matchesAny(location, historicalPatterns) {
		base += 1.5
	}
	if a.Kind == core.ContentVideo && matchesAny(location, scenicPatterns) {
		base += 1.0
	}
	if a.Kind == core.ContentMusic && matchesAny(location, culturalPatterns) {
		base += 1.0
	}

	switch prof.AgeBracket {
	case profile.AgeChild:
		if matchesAny(a.Title, childTokens) {
			base += 1.5
		}
	case profile.AgeSenior:
		if matchesAny(a.Title, seniorTokens) {
			base += 1.5
		}
	}

	if base > 10 {
		base = 10
	}
	if base < 0 {
		base = 0
	}
	return base
}

func (p *Policy) deterministicDecision(waypoint core.Waypoint, candidates []core.Artifact, prof *profile.Profile) core.Decision {
	type scored struct {
		artifact core.Artifact
		score    float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, a := range candidates {
		ranked = append(ranked, scored{artifact: a, score: score(a, waypoint, prof)})
	}
	// Tie-break: (1) final score, (2) base relevance_score,
	// (3) Worker priority (lower earlier), (4) kind order TEXT<MUSIC<VIDEO.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.artifact.RelevanceScore != b.artifact.RelevanceScore {
			return a.artifact.RelevanceScore > b.artifact.RelevanceScore
		}
		pa, pb := workerPriority(a.artifact), workerPriority(b.artifact)
		if pa != pb {
			return pa < pb
		}
		return kindOrder(a.artifact.Kind) < kindOrder(b.artifact.Kind)
	})

	best := ranked[0]
	scores := make(map[core.ContentKind]float64, len(ranked))
	for _, r := range ranked {
		scores[r.artifact.Kind] = r.score
	}

	// A sole candidate has no runner-up to measure a margin against; it
	// wins by default with full confidence.
	confidence := 1.0
	if len(ranked) > 1 {
		spread := best.score - ranked[1].score
		confidence = clamp01(spread / 10)
	}

	return core.Decision{
		WaypointID: waypoint.ID,
		Selected:   &best.artifact,
		Candidates: candidates,
		Scores:     scores,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("selected %s (%q) by deterministic scoring: weighted relevance %.2f",
			best.artifact.Kind, best.artifact.Title, best.score),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var (
	winnerRe      = regexp.MustCompile(`(?i)WINNER:\s*(\d+)`)
	winnerScoreRe = regexp.MustCompile(`(?i)WINNER_SCORE:\s*([\d.]+)`)
	reasoningRe   = regexp.MustCompile(`(?is)REASONING:\s*(.+?)(?:$|\n\n)`)
)

// adjudicateWithModel builds the adjudication prompt, calls the model, and
// parses its response via a `WINNER: / WINNER_SCORE: / REASONING:` regex
// shape. Any parse failure is surfaced as an error so the caller falls back.
func (p *Policy) adjudicateWithModel(ctx context.Context, waypoint core.Waypoint, candidates []core.Artifact, prof *profile.Profile) (core.Decision, error) {
	prompt := buildAdjudicationPrompt(waypoint, candidates, prof)

	resp, err := p.AIClient.GenerateResponse(ctx, prompt, &core.AIOptions{
		Model:        p.Model,
		MaxTokens:    512,
		SystemPrompt: "You are a tour-guide content curator. Follow the response format exactly.",
	})
	if err != nil {
		return core.Decision{}, err
	}

	winnerMatch := winnerRe.FindStringSubmatch(resp.Content)
	scoreMatch := winnerScoreRe.FindStringSubmatch(resp.Content)
	reasoningMatch := reasoningRe.FindStringSubmatch(resp.Content)
	if winnerMatch == nil || scoreMatch == nil || reasoningMatch == nil {
		return core.Decision{}, fmt.Errorf("judge: could not parse model response")
	}

	idx, err := strconv.Atoi(winnerMatch[1])
	if err != nil || idx < 1 || idx > len(candidates) {
		return core.Decision{}, fmt.Errorf("judge: model returned out-of-range winner index %q", winnerMatch[1])
	}
	winnerScore, err := strconv.ParseFloat(scoreMatch[1], 64)
	if err != nil {
		return core.Decision{}, fmt.Errorf("judge: model returned unparseable score %q", scoreMatch[1])
	}

	winner := candidates[idx-1]
	scores := make(map[core.ContentKind]float64, len(candidates))
	for _, c := range candidates {
		scores[c.Kind] = c.RelevanceScore
	}
	scores[winner.Kind] = winnerScore

	// The model only returns one score, so the runner-up side of the
	// margin comes from the best non-winner relevance score already on
	// the table, keeping this in line with the deterministic path's
	// (winner - runner_up)/10 formula rather than an absolute score.
	confidence := 1.0
	if len(candidates) > 1 {
		runnerUp := -1.0
		for _, c := range candidates {
			if c.Kind == winner.Kind {
				continue
			}
			if s := scores[c.Kind]; s > runnerUp {
				runnerUp = s
			}
		}
		confidence = clamp01((winnerScore - runnerUp) / 10)
	}

	return core.Decision{
		WaypointID: waypoint.ID,
		Selected:   &winner,
		Candidates: candidates,
		Scores:     scores,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(reasoningMatch[1]),
	}, nil
}

func buildAdjudicationPrompt(waypoint core.Waypoint, candidates []core.Artifact, prof *profile.Profile) string {
	var b strings.Builder
	location := waypoint.Name
	if location == "" {
		location = waypoint.Address
	}
	fmt.Fprintf(&b, "Location: %s\n\n", location)
	fmt.Fprintf(&b, "User profile: %s\n", prof.Description())
	fmt.Fprintf(&b, "Criteria: %s\n\n", strings.Join(prof.RankedCriteria(), "; "))

	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. [%s] %s\n   Source: %s\n   Initial score: %.1f/10\n\n",
			i+1, c.Kind, c.Title, c.Source, c.RelevanceScore)
	}

	b.WriteString("Respond in exactly this format:\n")
	b.WriteString("WINNER: <candidate number>\n")
	b.WriteString("WINNER_SCORE: <0-10>\n")
	b.WriteString("REASONING: <2-3 sentences>\n")
	return b.String()
}
