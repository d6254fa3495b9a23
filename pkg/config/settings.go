package config

import "time"

// Default values for negotiation settings left unset in YAML.
const (
	DefaultMaxCoordinatorRounds = 2
	DefaultPerOfferTimeoutMS    = 30_000
	DefaultSessionWallClockMS   = 180_000
	DefaultSelectionTopK        = 5
	DefaultSelectionThreshold   = 0.35
	DefaultRecursionMaxDepth    = 1
	DefaultEmbeddingDimension   = 256
)

// Settings is the closed set of negotiation knobs. There are exactly seven;
// everything else the engine needs arrives as a constructed collaborator.
type Settings struct {
	MaxCoordinatorRounds int     `json:"max_coordinator_rounds"`
	PerOfferTimeoutMS    int     `json:"per_offer_timeout_ms"`
	SessionWallClockMS   int     `json:"session_wall_clock_ms"`
	SelectionTopK        int     `json:"selection_top_k"`
	SelectionThreshold   float64 `json:"selection_threshold"`
	RecursionMaxDepth    int     `json:"recursion_max_depth"`
	EmbeddingDimension   int     `json:"embedding_dimension"`
}

// PerOfferTimeout returns the per-agent offer deadline as a duration.
func (s *Settings) PerOfferTimeout() time.Duration {
	return time.Duration(s.PerOfferTimeoutMS) * time.Millisecond
}

// SessionWallClock returns the whole-session ceiling as a duration.
func (s *Settings) SessionWallClock() time.Duration {
	return time.Duration(s.SessionWallClockMS) * time.Millisecond
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		MaxCoordinatorRounds: DefaultMaxCoordinatorRounds,
		PerOfferTimeoutMS:    DefaultPerOfferTimeoutMS,
		SessionWallClockMS:   DefaultSessionWallClockMS,
		SelectionTopK:        DefaultSelectionTopK,
		SelectionThreshold:   DefaultSelectionThreshold,
		RecursionMaxDepth:    DefaultRecursionMaxDepth,
		EmbeddingDimension:   DefaultEmbeddingDimension,
	}
}

// SettingsYAML mirrors the settings block of negotiation.yaml. Fields are
// pointers so an explicit zero (e.g. selection_threshold: 0.0) is
// distinguishable from unset; only unset falls back to the default.
type SettingsYAML struct {
	MaxCoordinatorRounds *int     `yaml:"max_coordinator_rounds,omitempty"`
	PerOfferTimeoutMS    *int     `yaml:"per_offer_timeout_ms,omitempty"`
	SessionWallClockMS   *int     `yaml:"session_wall_clock_ms,omitempty"`
	SelectionTopK        *int     `yaml:"selection_top_k,omitempty"`
	SelectionThreshold   *float64 `yaml:"selection_threshold,omitempty"`
	RecursionMaxDepth    *int     `yaml:"recursion_max_depth,omitempty"`
	EmbeddingDimension   *int     `yaml:"embedding_dimension,omitempty"`
}

// resolveSettings applies YAML overrides on top of the built-in defaults.
func resolveSettings(y *SettingsYAML) *Settings {
	s := DefaultSettings()
	if y == nil {
		return s
	}
	if y.MaxCoordinatorRounds != nil {
		s.MaxCoordinatorRounds = *y.MaxCoordinatorRounds
	}
	if y.PerOfferTimeoutMS != nil {
		s.PerOfferTimeoutMS = *y.PerOfferTimeoutMS
	}
	if y.SessionWallClockMS != nil {
		s.SessionWallClockMS = *y.SessionWallClockMS
	}
	if y.SelectionTopK != nil {
		s.SelectionTopK = *y.SelectionTopK
	}
	if y.SelectionThreshold != nil {
		s.SelectionThreshold = *y.SelectionThreshold
	}
	if y.RecursionMaxDepth != nil {
		s.RecursionMaxDepth = *y.RecursionMaxDepth
	}
	if y.EmbeddingDimension != nil {
		s.EmbeddingDimension = *y.EmbeddingDimension
	}
	return s
}
