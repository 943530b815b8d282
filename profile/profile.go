// Package profile implements the Consumer Profile and its content-kind
// weight derivation.
package profile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/trailmind/dispatch/core"
)

// AgeBracket is the categorical age grouping a Profile declares.
type AgeBracket string

const (
	AgeChild       AgeBracket = "child"
	AgeTeen        AgeBracket = "teen"
	AgeYoungAdult  AgeBracket = "young_adult"
	AgeAdult       AgeBracket = "adult"
	AgeSenior      AgeBracket = "senior"
	AgeUnspecified AgeBracket = "unspecified"
)

// Accessibility is one declared accessibility need.
type Accessibility string

const (
	AccessibilityVisual    Accessibility = "VISUAL_IMPAIRMENT"
	AccessibilityHearing   Accessibility = "HEARING_IMPAIRMENT"
	AccessibilityCognitive Accessibility = "COGNITIVE"
	AccessibilityMobility  Accessibility = "MOBILITY"
)

// Profile is the Consumer Profile: immutable per tour, owned by the
// caller and borrowed by the Orchestrator for the tour's duration.
type Profile struct {
	AgeBracket      AgeBracket
	ExactAge        int
	HasExactAge     bool
	Gender          string
	IsDriver        bool
	TravelMode      string
	TripPurpose     string
	ContentBias     string
	Accessibility   []Accessibility
	SubtitlesNeeded bool
	AudioDescription bool
	InterestTags    []string
	ExcludeTopics   []string
	ContentRating   string

	weightsInit sync.Once
	weights     map[core.ContentKind]float64
}

// HasAccessibility reports whether the profile declares need a.
func (p *Profile) HasAccessibility(a Accessibility) bool {
	for _, have := range p.Accessibility {
		if have == a {
			return true
		}
	}
	return false
}

// ExcludesTopic reports whether text (a title or metadata value) matches
// one of the profile's exclude_topics tags, case-insensitive substring.
func (p *Profile) ExcludesTopic(text string) bool {
	lower := strings.ToLower(text)
	for _, topic := range p.ExcludeTopics {
		if topic == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(topic)) {
			return true
		}
	}
	return false
}

// Description renders a human-readable summary of the profile, used as a
// prompt fragment by the Selection Policy's optional LLM adjudication
// and by Workers generating a search query.
func (p *Profile) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Traveler profile: age %s", p.AgeBracket)
	if p.IsDriver {
		b.WriteString(", currently driving (video content is unsafe)")
	}
	if len(p.InterestTags) > 0 {
		fmt.Fprintf(&b, ", interested in %s", strings.Join(p.InterestTags, ", "))
	}
	if len(p.ExcludeTopics) > 0 {
		fmt.Fprintf(&b, ", avoid topics: %s", strings.Join(p.ExcludeTopics, ", "))
	}
	if p.ContentRating != "" {
		fmt.Fprintf(&b, ", content rating: %s", p.ContentRating)
	}
	return b.String()
}

// RankedCriteria renders the profile's scoring priorities as an ordered
// list, used as a second prompt fragment by the model adjudication call.
func (p *Profile) RankedCriteria() []string {
	criteria := []string{"relevance to location"}
	if p.IsDriver {
		criteria = append(criteria, "safety (no video while driving)")
	}
	for _, a := range p.Accessibility {
		criteria = append(criteria, "accessibility: "+string(a))
	}
	if len(p.InterestTags) > 0 {
		criteria = append(criteria, "matches interests: "+strings.Join(p.InterestTags, ", "))
	}
	return criteria
}
