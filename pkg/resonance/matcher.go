package resonance

import (
	"context"
	"fmt"
	"sort"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/encoding"
	"github.com/parley-ai/parley/pkg/models"
)

// Match is one ranked agent with its aggregate score and per-view-pair
// breakdown.
type Match struct {
	AgentID     string
	DisplayName string
	Score       float64
	Breakdown   map[string]float64 // view-pair key -> cosine
}

// Matcher selects agents for a demand. Construction takes the encoder and
// the two selection knobs; Rank batch-encodes all views in one call and then
// scores purely in memory.
type Matcher struct {
	encoder   encoding.Encoder
	topK      int
	threshold float64
}

// NewMatcher creates a matcher. Panics if encoder is nil.
func NewMatcher(encoder encoding.Encoder, topK int, threshold float64) *Matcher {
	if encoder == nil {
		panic("resonance.NewMatcher: encoder must not be nil")
	}
	return &Matcher{encoder: encoder, topK: topK, threshold: threshold}
}

// Rank scores every profile against the demand and returns matches above the
// threshold, best first, capped at top-K. Ties break by lexicographic agent
// id, so ranking is deterministic for identical inputs.
func (m *Matcher) Rank(ctx context.Context, demand *models.FormulatedDemand, profiles []*config.AgentProfile) ([]Match, error) {
	if demand == nil {
		return nil, fmt.Errorf("resonance: demand must not be nil")
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	// One flat encode batch: demand views first, then per-profile views,
	// both in fixed order so slots are positionally addressable.
	texts := make([]string, 0, len(demandViewOrder)+len(profiles)*len(profileViewOrder))
	dviews := DemandViews(demand)
	for _, name := range demandViewOrder {
		texts = append(texts, dviews[name])
	}
	for _, p := range profiles {
		pviews := ProfileViews(p)
		for _, name := range profileViewOrder {
			texts = append(texts, pviews[name])
		}
	}

	vecs, err := m.encoder.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("resonance: encode views: %w", err)
	}

	demandVecs := make(map[string][]float32, len(demandViewOrder))
	for i, name := range demandViewOrder {
		demandVecs[name] = vecs[i]
	}

	matches := make([]Match, 0, len(profiles))
	for pi, p := range profiles {
		base := len(demandViewOrder) + pi*len(profileViewOrder)
		profileVecs := make(map[string][]float32, len(profileViewOrder))
		for vi, name := range profileViewOrder {
			profileVecs[name] = vecs[base+vi]
		}
		score, breakdown := scoreViews(demandVecs, profileVecs)
		matches = append(matches, Match{
			AgentID:     p.AgentID,
			DisplayName: p.DisplayName,
			Score:       score,
			Breakdown:   breakdown,
		})
	}

	return SelectTop(matches, m.topK, m.threshold), nil
}

// scoreViews computes the cosine of every demand-view / profile-view pair.
// The aggregate is the maximum: a strong match on any one facet is enough.
func scoreViews(demandVecs, profileVecs map[string][]float32) (float64, map[string]float64) {
	breakdown := make(map[string]float64, len(demandViewOrder)*len(profileViewOrder))
	best := 0.0
	for _, dv := range demandViewOrder {
		for _, pv := range profileViewOrder {
			cos := Cosine(demandVecs[dv], profileVecs[pv])
			breakdown[viewPairKey(dv, pv)] = cos
			if cos > best {
				best = cos
			}
		}
	}
	return best, breakdown
}

// SelectTop applies the threshold, sorts best first with lexicographic
// agent-id tie-break, and caps at topK. Pure; exposed for property tests.
func SelectTop(matches []Match, topK int, threshold float64) []Match {
	selected := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= threshold {
			selected = append(selected, m)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		return selected[i].AgentID < selected[j].AgentID
	})
	if topK > 0 && len(selected) > topK {
		selected = selected[:topK]
	}
	return selected
}

// Cosine returns the cosine similarity of two unit vectors (their dot
// product). Mismatched lengths score zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
