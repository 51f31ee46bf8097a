// services/extractor.go
package services

import (
	"log"
	"regexp"
	"strconv"

	"lawn-points-service/models"
)

// pointPhrase matches "<number> lawn point(s)": optional sign, digits, optional
// fraction up to 8 places. Only the first match per cast counts.
var pointPhrase = regexp.MustCompile(`(?i)([+-]?\d+(?:\.\d{1,8})?)\s*lawn\s*points?`)

// firstPointNumeral returns the numeral of the first point-phrase whose number
// does not begin mid-numeral. The regex alone re-anchors inside an over-long
// fraction ("1.123456789 lawn points" would credit 123456789), so a match
// directly preceded by a digit or '.' is discarded and the scan continues.
func firstPointNumeral(text string) (string, bool) {
	for _, loc := range pointPhrase.FindAllStringSubmatchIndex(text, -1) {
		start := loc[2]
		if start > 0 {
			prev := text[start-1]
			if (prev >= '0' && prev <= '9') || prev == '.' {
				continue
			}
		}
		return text[loc[2]:loc[3]], true
	}
	return "", false
}

// ExtractPointEvents scans admin casts for point assignments. Only replies
// carry points: the delta goes to the cast's addressee (parent author), never
// its author. Malformed or non-finite numerals are skipped, never fatal.
func ExtractPointEvents(casts []Cast) []models.PointEvent {
	events := make([]models.PointEvent, 0, len(casts))

	for _, cast := range casts {
		if cast.ParentAuthor == nil || cast.ParentAuthor.Fid == nil {
			continue
		}

		numeral, ok := firstPointNumeral(cast.Text)
		if !ok {
			continue
		}

		delta, err := strconv.ParseFloat(numeral, 64)
		if err != nil || !models.ValidPoints(delta) {
			log.Printf("⚠️ [EXTRACT] Skipping invalid points value %q in cast: %q", numeral, cast.Text)
			continue
		}

		events = append(events, models.PointEvent{
			Fid:        *cast.ParentAuthor.Fid,
			Delta:      delta,
			OccurredAt: cast.Timestamp,
		})
	}

	return events
}
