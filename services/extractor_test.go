package services

import (
	"testing"
	"time"

	"lawn-points-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fidPtr(fid int64) *int64 { return &fid }

func TestExtractPointEvents(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		casts    []Cast
		expected []models.PointEvent
	}{
		{
			name: "basic positive assignment",
			casts: []Cast{
				{Text: "+5 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 42, Delta: 5, OccurredAt: ts}},
		},
		{
			name: "negative fractional, case insensitive, singular",
			casts: []Cast{
				{Text: "-3.5 Lawn Point", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 42, Delta: -3.5, OccurredAt: ts}},
		},
		{
			name: "sign is optional",
			casts: []Cast{
				{Text: "here, have 7 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(9)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 9, Delta: 7, OccurredAt: ts}},
		},
		{
			name: "no whitespace between number and phrase",
			casts: []Cast{
				{Text: "+2lawn points for you", ParentAuthor: &CastParent{Fid: fidPtr(9)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 9, Delta: 2, OccurredAt: ts}},
		},
		{
			name: "top-level cast without addressee yields nothing",
			casts: []Cast{
				{Text: "+5 lawn points", Timestamp: ts},
				{Text: "+5 lawn points", ParentAuthor: &CastParent{}, Timestamp: ts},
			},
			expected: []models.PointEvent{},
		},
		{
			name: "non-matching text yields nothing",
			casts: []Cast{
				{Text: "nice lawn you got there", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
				{Text: "+5 grass points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{},
		},
		{
			name: "malformed numeral is skipped without error",
			casts: []Cast{
				{Text: "+abc lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{},
		},
		{
			// Carried over from the reference behavior: when one cast holds
			// several point-phrases, only the first is honored.
			name: "first match wins when multiple phrases present",
			casts: []Cast{
				{Text: "+5 lawn points and also -3 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 42, Delta: 5, OccurredAt: ts}},
		},
		{
			// The fractional digits must not be re-read as a whole number:
			// "1.123456789" has nine decimal places and yields nothing, not a
			// delta of 123456789.
			name: "more than eight decimal places yields nothing",
			casts: []Cast{
				{Text: "1.123456789 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
				{Text: "+1.123456789 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{},
		},
		{
			name: "eight decimal places parse exactly",
			casts: []Cast{
				{Text: "+0.00000001 lawn points", ParentAuthor: &CastParent{Fid: fidPtr(42)}, Timestamp: ts},
			},
			expected: []models.PointEvent{{Fid: 42, Delta: 0.00000001, OccurredAt: ts}},
		},
		{
			name: "mixed batch keeps feed order",
			casts: []Cast{
				{Text: "+1 lawn point", ParentAuthor: &CastParent{Fid: fidPtr(1)}, Timestamp: ts},
				{Text: "gm", ParentAuthor: &CastParent{Fid: fidPtr(2)}, Timestamp: ts},
				{Text: "-2 LAWN POINTS", ParentAuthor: &CastParent{Fid: fidPtr(3)}, Timestamp: ts.Add(time.Minute)},
			},
			expected: []models.PointEvent{
				{Fid: 1, Delta: 1, OccurredAt: ts},
				{Fid: 3, Delta: -2, OccurredAt: ts.Add(time.Minute)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := ExtractPointEvents(tt.casts)
			require.Len(t, events, len(tt.expected))
			assert.Equal(t, tt.expected, events)
		})
	}
}

func TestExtractPointEventsEmptyInput(t *testing.T) {
	assert.Empty(t, ExtractPointEvents(nil))
	assert.Empty(t, ExtractPointEvents([]Cast{}))
}
