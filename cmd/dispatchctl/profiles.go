package main

import "github.com/trailmind/dispatch/profile"

// profilePresets names the canned Consumer Profiles the --profile flag
// selects between, standing in for the richer profile-intake flow a host
// application would front this CLI with.
var profilePresets = map[string]profile.Profile{
	"default": {
		AgeBracket: profile.AgeAdult,
	},
	"driver": {
		AgeBracket: profile.AgeAdult,
		IsDriver:   true,
		TravelMode: "car",
	},
	"family": {
		AgeBracket:   profile.AgeChild,
		InterestTags: []string{"fun", "kids"},
	},
	"senior": {
		AgeBracket:   profile.AgeSenior,
		InterestTags: []string{"history", "classic"},
	},
	"accessible_visual": {
		AgeBracket:    profile.AgeAdult,
		Accessibility: []profile.Accessibility{profile.AccessibilityVisual},
	},
	"accessible_hearing": {
		AgeBracket:    profile.AgeAdult,
		Accessibility: []profile.Accessibility{profile.AccessibilityHearing},
	},
}

// resolveProfile looks up name in profilePresets, returning a fresh copy
// (each *profile.Profile caches its weights once via sync.Once, so two
// runs must never share one preset's backing struct; the dispatches of a
// single run all share the one copy returned here).
func resolveProfile(name string) (*profile.Profile, bool) {
	preset, ok := profilePresets[name]
	if !ok {
		return nil, false
	}
	return &preset, true
}
