package prediction

import (
	"strings"

	"railrisk/internal/types"
)

// OfficialTextKind classifies free-form operator announcements.
type OfficialTextKind int

const (
	TextUnclassified OfficialTextKind = iota
	// TextPartial means only some trains or sections are affected.
	TextPartial
	// TextSuspended means the line is stopped.
	TextSuspended
	// TextAllDay means the line is stopped for the rest of the day.
	TextAllDay
)

func (k OfficialTextKind) String() string {
	switch k {
	case TextPartial:
		return "partial"
	case TextSuspended:
		return "suspended"
	case TextAllDay:
		return "all-day"
	default:
		return "unclassified"
	}
}

// Phrases that mean only part of the service is affected.
var partialPatterns = []string{
	"一部の列車",
	"部分運休",
	"本数を減ら",
	"間引き",
	"一部区間",
	"区間運休",
	"一部運休",
	"減便",
	"列車を一部",
}

// Phrases that mean the whole line is stopped for the day.
var allDayPatterns = []string{
	"終日運休",
	"終日運転見合わせ",
	"全区間運休",
}

var suspendedPatterns = []string{
	"運休",
	"見合わせ",
}

// ClassifyOfficialText classifies an announcement. Partial patterns win over
// everything else so that a partial cancellation is never reported as a full
// line suspension.
func ClassifyOfficialText(text string) OfficialTextKind {
	if text == "" {
		return TextUnclassified
	}
	if containsAny(text, partialPatterns) {
		return TextPartial
	}
	if containsAny(text, allDayPatterns) ||
		(strings.Contains(text, "本日の運転") && strings.Contains(text, "見合わせ")) {
		return TextAllDay
	}
	if containsAny(text, suspendedPatterns) {
		return TextSuspended
	}
	return TextUnclassified
}

// ClassifySignal combines the declared status with the announcement text.
// Text on a signal declared normal is ignored; it usually describes other
// lines.
func ClassifySignal(s types.OfficialStatusSignal) OfficialTextKind {
	if s.Status == types.OfficialNormal {
		return TextUnclassified
	}
	kind := ClassifyOfficialText(s.Text())
	if kind == TextPartial || s.Status == types.OfficialPartial {
		return TextPartial
	}
	if kind != TextUnclassified {
		return kind
	}
	if s.Status.Normalize() == types.OfficialSuspended {
		return TextSuspended
	}
	return TextUnclassified
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
