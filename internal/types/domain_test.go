package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOfficialStatusNormalize(t *testing.T) {
	if got := OfficialCancelled.Normalize(); got != OfficialSuspended {
		t.Errorf("cancelled normalized to %q, want suspended", got)
	}
	for _, s := range []OfficialStatus{OfficialNormal, OfficialDelay, OfficialSuspended, OfficialPartial} {
		if got := s.Normalize(); got != s {
			t.Errorf("%q normalized to %q", s, got)
		}
	}
}

func TestOfficialStatusSignal_NormalizedReturnsCopy(t *testing.T) {
	sig := OfficialStatusSignal{Status: OfficialCancelled, StatusText: "運休"}
	n := sig.Normalized()

	if n.Status != OfficialSuspended {
		t.Errorf("Status = %q, want suspended", n.Status)
	}
	if sig.Status != OfficialCancelled {
		t.Error("Normalized must not mutate the receiver")
	}
}

func TestWeatherObservation_HourAt(t *testing.T) {
	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	obs := WeatherObservation{
		Time:      base,
		WindSpeed: 12,
		SurroundingHours: []WeatherObservation{
			{Time: base.Add(-time.Hour), WindSpeed: 9},
			{Time: base.Add(time.Hour), WindSpeed: 15},
		},
	}

	h, ok := obs.HourAt(base.Add(time.Hour + 20*time.Minute))
	if !ok || h.WindSpeed != 15 {
		t.Errorf("HourAt(+1h20m) = %v, %v; want wind 15", h.WindSpeed, ok)
	}
	h, ok = obs.HourAt(base)
	if !ok || h.WindSpeed != 12 {
		t.Errorf("HourAt(target) = %v, %v; want the observation itself", h.WindSpeed, ok)
	}
	if _, ok := obs.HourAt(base.Add(5 * time.Hour)); ok {
		t.Error("HourAt should miss hours outside the surrounding set")
	}
}

func TestRouteVulnerabilityProfile_InSafeDirection(t *testing.T) {
	p := RouteVulnerabilityProfile{
		SafeWindDirections: []DirectionRange{{From: 350, To: 360}, {From: 0, To: 10}},
	}

	if !p.InSafeDirection(355) || !p.InSafeDirection(5) {
		t.Error("northerly winds should be inside the safe arc")
	}
	if p.InSafeDirection(180) {
		t.Error("southerly wind should not be inside the safe arc")
	}
}

func TestPredictionResult_OptionalFieldsSerializeAsNull(t *testing.T) {
	data, err := json.Marshal(PredictionResult{Reasons: []string{}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	body := string(data)
	for _, key := range []string{
		`"estimated_resumption":null`,
		`"suspension_scale":null`,
		`"official_status":null`,
		`"trend":null`,
		`"partial_suspension_text":null`,
		`"time_shift_suggestion":null`,
	} {
		if !strings.Contains(body, key) {
			t.Errorf("expected %s in %s", key, body)
		}
	}
}
