// Package resonance ranks candidate agents against a formulated demand by
// cosine similarity, computed across multiple views of both sides so a match
// on any single facet is enough to surface an agent.
package resonance

import (
	"sort"
	"strings"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/models"
)

// Demand view names.
const (
	ViewIntent      = "intent"
	ViewConstraints = "constraints"
	ViewCombined    = "combined"
)

// Profile view names.
const (
	ViewCapabilities = "capabilities"
	ViewContext      = "context"
)

// demandViewOrder fixes the encode order of demand views.
var demandViewOrder = []string{ViewIntent, ViewConstraints, ViewCombined}

// profileViewOrder fixes the encode order of profile views.
var profileViewOrder = []string{ViewCapabilities, ViewContext}

// DemandViews renders the text views of a formulated demand. A view with no
// underlying content falls back to the intent so every view encodes to a
// meaningful vector.
func DemandViews(d *models.FormulatedDemand) map[string]string {
	constraints := strings.Join(d.Constraints, ". ")

	var combined strings.Builder
	combined.WriteString(d.Intent)
	if constraints != "" {
		combined.WriteString(". ")
		combined.WriteString(constraints)
	}
	if len(d.Preferences) > 0 {
		combined.WriteString(". ")
		combined.WriteString(strings.Join(d.Preferences, ". "))
	}
	if len(d.Context) > 0 {
		keys := make([]string, 0, len(d.Context))
		for k := range d.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			combined.WriteString(". ")
			combined.WriteString(k)
			combined.WriteString(": ")
			combined.WriteString(d.Context[k])
		}
	}

	views := map[string]string{
		ViewIntent:      d.Intent,
		ViewConstraints: constraints,
		ViewCombined:    combined.String(),
	}
	for name, text := range views {
		if text == "" {
			views[name] = d.Intent
		}
	}
	return views
}

// ProfileViews renders the text views of one agent profile. An empty view
// falls back along capabilities, context, display name, and protocol id,
// mirroring the demand-side fallback, so every view encodes to a meaningful
// vector even for sparse profiles upserted after load-time validation.
func ProfileViews(p *config.AgentProfile) map[string]string {
	capabilities := strings.Join(p.Capabilities, ". ")
	if capabilities == "" {
		capabilities = firstNonEmpty(p.Context, p.DisplayName, p.AgentID)
	}
	context := p.Context
	if context == "" {
		context = capabilities
	}
	return map[string]string{
		ViewCapabilities: capabilities,
		ViewContext:      context,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// viewPairKey names one demand-view / profile-view pairing in breakdowns.
func viewPairKey(demandView, profileView string) string {
	return demandView + "->" + profileView
}
