package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"railrisk/internal/statustext"
	"railrisk/internal/types"
)

const (
	officialFeedBase = "https://www3.jrhokkaido.co.jp"
	officialProvider = "official feed"
)

// DefaultAreas are the operator's regional feeds: Sapporo, Doo, Dohoku,
// Doto and Donan.
var DefaultAreas = []string{"01", "02", "03", "04", "05"}

// routeMatcher maps an announcement to a route by keyword. Matchers are tried
// in order and only within the areas the route runs through.
type routeMatcher struct {
	routeID  string
	areas    []string
	keywords []string
}

var routeMatchers = []routeMatcher{
	{"jr-hokkaido.chitose", []string{"01", "02"}, []string{"千歳線", "エアポート", "新千歳空港"}},
	{"jr-hokkaido.gakuentoshi", []string{"01"}, []string{"学園都市線", "札沼線"}},
	{"jr-hokkaido.hakodate-main", []string{"01", "02", "05"}, []string{"函館線", "函館本線", "ライラック", "カムイ", "小樽"}},
	{"jr-hokkaido.muroran", []string{"02", "05"}, []string{"室蘭線", "室蘭本線", "すずらん"}},
	{"jr-hokkaido.hidaka", []string{"02"}, []string{"日高線", "日高本線"}},
	{"jr-hokkaido.sekisho", []string{"02", "04"}, []string{"石勝線", "おおぞら", "とかち"}},
	{"jr-hokkaido.soya", []string{"03"}, []string{"宗谷線", "宗谷本線", "サロベツ", "稚内"}},
	{"jr-hokkaido.sekihoku", []string{"03", "04"}, []string{"石北線", "石北本線", "オホーツク"}},
	{"jr-hokkaido.rumoi", []string{"03"}, []string{"留萌線", "留萌本線"}},
	{"jr-hokkaido.furano", []string{"03"}, []string{"富良野線"}},
	{"jr-hokkaido.senmo", []string{"04"}, []string{"釧網線", "釧網本線"}},
	{"jr-hokkaido.nemuro", []string{"02", "04"}, []string{"根室線", "根室本線", "帯広"}},
}

// MatchRoute returns the route an announcement from areaID refers to.
func MatchRoute(areaID, text string) (string, bool) {
	for _, m := range routeMatchers {
		if !slices.Contains(m.areas, areaID) {
			continue
		}
		for _, kw := range m.keywords {
			if strings.Contains(text, kw) {
				return m.routeID, true
			}
		}
	}
	return "", false
}

// Announcement is one route-attributed item from the status feed.
type Announcement struct {
	RouteID      string
	AreaID       string
	Text         string
	Status       types.OfficialStatus
	Cause        statustext.Cause
	DelayMinutes *int
	Resumption   *time.Time
	ObservedAt   time.Time
}

// Signal converts the announcement into the engine's input shape.
func (a Announcement) Signal() types.OfficialStatusSignal {
	summary, _ := statustext.Split(a.Text)
	observed := a.ObservedAt
	return types.OfficialStatusSignal{
		Status:         a.Status,
		StatusText:     summary,
		RawText:        a.Text,
		UpdatedAt:      &observed,
		ResumptionTime: a.Resumption,
	}
}

// OfficialClientConfig holds the configuration for creating an OfficialClient.
type OfficialClientConfig struct {
	BaseURL  string   // Override for testing; defaults to officialFeedBase
	Areas    []string // Defaults to DefaultAreas
	Location *time.Location
	Clock    types.Clock
	Logger   *slog.Logger
}

// areaFeed is the per-area JSON document. Each gaikyo entry is one notice.
type areaFeed struct {
	Today struct {
		Gaikyo []struct {
			Title  string `json:"title"`
			Honbun string `json:"honbun"`
		} `json:"gaikyo"`
	} `json:"today"`
}

// OfficialClient implements OfficialStatusProvider by reading the operator's
// per-area JSON feeds through BaseClient.
type OfficialClient struct {
	base    *BaseClient
	baseURL string
	areas   []string
	loc     *time.Location
	clock   types.Clock
	logger  *slog.Logger
}

// NewOfficialClient creates an OfficialClient.
func NewOfficialClient(httpClient *http.Client, cfg OfficialClientConfig) *OfficialClient {
	base := NewBaseClient(
		httpClient,
		"official-feed",
		DefaultRetryPolicy(),
		userAgent,
		WithUpstreamCode(types.ErrCodeUpstreamOfficial),
		WithLogger(cfg.Logger),
	)
	return NewOfficialClientWithBase(base, cfg)
}

// NewOfficialClientWithBase creates an OfficialClient around a pre-configured
// BaseClient.
func NewOfficialClientWithBase(base *BaseClient, cfg OfficialClientConfig) *OfficialClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = officialFeedBase
	}
	areas := cfg.Areas
	if len(areas) == 0 {
		areas = DefaultAreas
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficialClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		areas:   areas,
		loc:     loc,
		clock:   clock,
		logger:  logger,
	}
}

// Announcements fetches every area concurrently. A failing area is logged
// and skipped; the call fails only when no area could be read.
func (c *OfficialClient) Announcements(ctx context.Context) ([]Announcement, error) {
	now := c.clock.Now().In(c.loc)

	var (
		mu       sync.Mutex
		out      []Announcement
		failures int
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, area := range c.areas {
		g.Go(func() error {
			items, err := c.fetchArea(gctx, area, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				c.logger.WarnContext(ctx, "official area feed failed",
					"area_id", area,
					"error", err,
				)
				return nil
			}
			out = append(out, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(c.areas) {
		return nil, lastErr
	}
	return out, nil
}

// Statuses reduces the announcements to the most severe one per route.
func (c *OfficialClient) Statuses(ctx context.Context) (map[string]types.OfficialStatusSignal, error) {
	items, err := c.Announcements(ctx)
	if err != nil {
		return nil, err
	}

	best := make(map[string]Announcement, len(items))
	for _, a := range items {
		cur, ok := best[a.RouteID]
		if !ok || severity(a.Status) > severity(cur.Status) {
			best[a.RouteID] = a
		}
	}

	out := make(map[string]types.OfficialStatusSignal, len(best))
	for id, a := range best {
		out[id] = a.Signal()
	}
	return out, nil
}

func (c *OfficialClient) fetchArea(ctx context.Context, area string, now time.Time) ([]Announcement, error) {
	url := fmt.Sprintf("%s/webunkou/json/area/area_%s.json", c.baseURL, area)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create official feed request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapError(types.ErrCodeUpstreamOfficial, officialProvider, "area "+area, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(types.ErrCodeUpstreamOfficial, officialProvider, "area "+area, resp)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOfficial, "failed to read official feed", err)
	}
	// The feed is served with a UTF-8 byte order mark.
	data := bytes.TrimPrefix(buf.Bytes(), []byte("\ufeff"))

	var feed areaFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOfficial, "failed to decode official feed", err)
	}

	var out []Announcement
	for _, item := range feed.Today.Gaikyo {
		text := strings.TrimSpace(item.Title + "\n" + item.Honbun)
		if text == "" {
			continue
		}
		routeID, ok := MatchRoute(area, text)
		if !ok {
			continue
		}
		a := Announcement{
			RouteID:    routeID,
			AreaID:     area,
			Text:       text,
			Status:     statustext.Status(text),
			Cause:      statustext.CauseOf(text),
			ObservedAt: now,
		}
		if n, ok := statustext.DelayMinutes(text); ok {
			a.DelayMinutes = &n
		}
		if t, ok := statustext.ExtractResumption(text, now); ok {
			a.Resumption = &t
		}
		out = append(out, a)
	}
	return out, nil
}

func severity(s types.OfficialStatus) int {
	switch s.Normalize() {
	case types.OfficialSuspended:
		return 4
	case types.OfficialPartial:
		return 3
	case types.OfficialDelay:
		return 2
	case types.OfficialNormal:
		return 1
	}
	return 0
}

// Compile-time interface compliance check.
var _ OfficialStatusProvider = (*OfficialClient)(nil)
