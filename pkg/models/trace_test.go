package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceChainAppendAssignsSequence(t *testing.T) {
	tc := NewTraceChain("neg-1")

	first := tc.Append(TraceFormulated, map[string]string{"intent": "x"})
	second := tc.Append(TraceOfferReceived, nil)

	assert.Equal(t, 0, first.Seq)
	assert.Equal(t, 1, second.Seq)
	assert.Equal(t, TraceFormulated, first.Kind)
	assert.False(t, first.Timestamp.IsZero())
}

func TestTraceChainEntriesAreCopies(t *testing.T) {
	tc := NewTraceChain("neg-1")
	tc.Append(TraceFormulated, nil)

	entries := tc.Entries()
	tc.Append(TraceError, nil)

	assert.Len(t, entries, 1)
	assert.Equal(t, 2, tc.Len())
}

func TestTraceChainSequencesAreGapFree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	kinds := []TraceKind{
		TraceFormulated, TraceResonanceComputed, TraceOfferReceived,
		TraceCoordinatorRound, TracePlanEmitted, TraceError, TraceEventsDropped,
	}

	properties.Property("after n appends, seqs are exactly 0..n-1", prop.ForAll(
		func(n int) bool {
			tc := NewTraceChain("neg-prop")
			for i := 0; i < n; i++ {
				tc.Append(kinds[i%len(kinds)], nil)
			}
			entries := tc.Entries()
			if len(entries) != n {
				return false
			}
			for i, e := range entries {
				if e.Seq != i {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}

func TestTraceChainConcurrentAppends(t *testing.T) {
	tc := NewTraceChain("neg-1")

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				tc.Append(TraceOfferReceived, fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	entries := tc.Entries()
	require.Len(t, entries, writers*perWriter)
	for i, e := range entries {
		assert.Equal(t, i, e.Seq)
	}
}
