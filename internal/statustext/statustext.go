// Package statustext extracts structured facts from the operator's free-form
// Japanese service announcements: the announced resumption time, the delay
// in minutes, a coarse status, and a headline/details split.
package statustext

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"railrisk/internal/types"
)

// resumptionPatterns are tried in order. Group 1 is the hour and the optional
// group 2 the minute.
var resumptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2})時(\d{1,2})分頃?.*再開`),
	regexp.MustCompile(`(\d{1,2}):(\d{1,2}).*再開`),
	regexp.MustCompile(`(\d{1,2})時頃?.*再開`),
	regexp.MustCompile(`(\d{1,2}):(\d{1,2})頃?から`),
	regexp.MustCompile(`(\d{1,2})時(\d{1,2})分頃?から`),
	regexp.MustCompile(`(\d{1,2}):(\d{1,2})頃?以降`),
	regexp.MustCompile(`(\d{1,2})時(\d{1,2})分頃?以降`),
}

var delayPattern = regexp.MustCompile(`(\d{1,3})分(?:程度|以上|前後)?の?(?:遅れ|遅延)`)

var breakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

// Normalize folds full-width digits and punctuation to their ASCII forms so
// the patterns only need to handle one width.
func Normalize(text string) string {
	return width.Fold.String(text)
}

// Clock is a wall-clock time of day announced in a status text.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return pad(c.Hour) + ":" + pad(c.Minute)
}

// On places the clock on ref's calendar day in ref's location. Hour 24 rolls
// over to midnight of the next day.
func (c Clock) On(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, ref.Location())
}

// ResumptionClock returns the first announced resumption time in text.
func ResumptionClock(text string) (Clock, bool) {
	if text == "" {
		return Clock{}, false
	}
	normalized := Normalize(text)
	for _, re := range resumptionPatterns {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if len(m) > 2 && m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 24 || minute > 59 {
			continue
		}
		return Clock{Hour: hour, Minute: minute}, true
	}
	return Clock{}, false
}

// ExtractResumption returns the announced resumption time on ref's day. The
// announcement carries no date, so a time already in the past stays on the
// same day rather than being moved to tomorrow.
func ExtractResumption(text string, ref time.Time) (time.Time, bool) {
	c, ok := ResumptionClock(text)
	if !ok {
		return time.Time{}, false
	}
	return c.On(ref), true
}

// DelayMinutes returns the delay announced in text, e.g. "30分程度の遅れ".
func DelayMinutes(text string) (int, bool) {
	m := delayPattern.FindStringSubmatch(Normalize(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Status derives a coarse official status from the announcement. An explicit
// resumption or normal-service notice wins over the keywords it repeats.
func Status(text string) types.OfficialStatus {
	t := Normalize(text)
	switch {
	case strings.Contains(t, "再開しました"), strings.Contains(t, "平常"):
		return types.OfficialNormal
	case strings.Contains(t, "終日運休"):
		return types.OfficialCancelled
	case strings.Contains(t, "部分運休"), strings.Contains(t, "一部区間"),
		strings.Contains(t, "一部の列車が運休"), strings.Contains(t, "本数を減ら"):
		return types.OfficialPartial
	case strings.Contains(t, "運休"), strings.Contains(t, "見合わせ"), strings.Contains(t, "見合せ"):
		return types.OfficialSuspended
	case strings.Contains(t, "遅れ"), strings.Contains(t, "遅延"):
		return types.OfficialDelay
	}
	return types.OfficialNormal
}

// Cause labels what an announcement attributes the disruption to. Causes
// unrelated to weather (wildlife, accidents, equipment, works) report
// CauseOther.
type Cause string

const (
	CauseSnow    Cause = "snow"
	CauseWind    Cause = "wind"
	CauseRain    Cause = "rain"
	CauseWeather Cause = "weather"
	CauseOther   Cause = "other"
)

var nonWeatherKeywords = []string{"鹿", "人身", "信号", "車両", "線路支障", "倒木", "点検", "工事"}

// CauseOf classifies the cause named in text.
func CauseOf(text string) Cause {
	for _, kw := range nonWeatherKeywords {
		if strings.Contains(text, kw) {
			return CauseOther
		}
	}
	switch {
	case strings.Contains(text, "雪"):
		return CauseSnow
	case strings.Contains(text, "風"):
		return CauseWind
	case strings.Contains(text, "雨"):
		return CauseRain
	}
	return CauseWeather
}

// Lines splits an announcement into trimmed, non-empty lines. Markup line
// breaks count as newlines and every ■ bullet starts a new line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	text = breakPattern.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "■", "\n■")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Split returns the headline line and the remaining lines joined by newlines.
func Split(text string) (summary, details string) {
	lines := Lines(text)
	if len(lines) == 0 {
		return "", ""
	}
	return lines[0], strings.Join(lines[1:], "\n")
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
