package prediction

import (
	"sort"
	"strings"

	"railrisk/internal/types"
)

// DefaultRouteID is the key of the fallback profile.
const DefaultRouteID = "default"

const routePrefix = "jr-hokkaido."

var profiles = map[string]types.RouteVulnerabilityProfile{
	"hakodate-main": {
		Name:                    "Hakodate Main Line",
		WindThreshold:           20,
		SnowThreshold:           5,
		VulnerabilityMultiplier: 1.0,
		MLRouteCode:             0,
		Description:             "Trunk line; well protected but exposed along Zenibako",
	},
	"chitose": {
		Name:                    "Chitose Line",
		WindThreshold:           18,
		SnowThreshold:           4,
		VulnerabilityMultiplier: 1.6,
		SafeWindDirections:      []types.DirectionRange{{From: 350, To: 360}, {From: 0, To: 10}},
		MLRouteCode:             1,
		Description:             "Airport access; northerly winds run parallel to the track",
	},
	"gakuentoshi": {
		Name:                    "Gakuentoshi Line",
		WindThreshold:           15,
		SnowThreshold:           4,
		VulnerabilityMultiplier: 1.1,
		HasDeerRisk:             true,
		MLRouteCode:             2,
		Description:             "Suburban line crossing open farmland",
	},
	"muroran": {
		Name:                    "Muroran Line",
		WindThreshold:           16,
		SnowThreshold:           4,
		VulnerabilityMultiplier: 1.3,
		HasDeerRisk:             true,
		MLRouteCode:             3,
		Description:             "Coastal line exposed to Pacific winds",
	},
	"hidaka": {
		Name:                    "Hidaka Line",
		WindThreshold:           16,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.4,
		HasDeerRisk:             true,
		MLRouteCode:             4,
		Description:             "Coastal line prone to wave overtopping",
	},
	"rumoi": {
		Name:                    "Rumoi Line",
		WindThreshold:           14,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.6,
		HasDeerRisk:             true,
		MLRouteCode:             5,
		Description:             "Heavy-snow district with drifting",
	},
	"sekihoku": {
		Name:                    "Sekihoku Main Line",
		WindThreshold:           20,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.6,
		HasDeerRisk:             true,
		MLRouteCode:             6,
		Description:             "Mountain crossing with frequent deer strikes",
	},
	"sekisho": {
		Name:                    "Sekisho Line",
		WindThreshold:           16,
		SnowThreshold:           4,
		VulnerabilityMultiplier: 1.5,
		HasDeerRisk:             true,
		MLRouteCode:             7,
		Description:             "Mountain pass between Sapporo and Tokachi",
	},
	"furano": {
		Name:                    "Furano Line",
		WindThreshold:           16,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.3,
		HasDeerRisk:             true,
		MLRouteCode:             8,
		Description:             "Inland basin with heavy powder snow",
	},
	"soya": {
		Name:                    "Soya Main Line",
		WindThreshold:           20,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.8,
		HasDeerRisk:             true,
		MLRouteCode:             9,
		Description:             "Northernmost line; long single-track stretches",
	},
	"nemuro": {
		Name:                    "Nemuro Main Line",
		WindThreshold:           20,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.5,
		HasDeerRisk:             true,
		MLRouteCode:             10,
		Description:             "Eastern line through wetlands and fog",
	},
	"senmo": {
		Name:                    "Senmo Main Line",
		WindThreshold:           14,
		SnowThreshold:           3,
		VulnerabilityMultiplier: 1.6,
		HasDeerRisk:             true,
		MLRouteCode:             11,
		Description:             "Okhotsk coast line exposed to drift ice winds",
	},
}

var defaultProfile = types.RouteVulnerabilityProfile{
	RouteID:                 DefaultRouteID,
	Name:                    "Default",
	WindThreshold:           15,
	SnowThreshold:           5,
	VulnerabilityMultiplier: 1.0,
	MLRouteCode:             -1,
	Description:             "Fallback thresholds for routes without a profile",
}

// LookupProfile returns the profile for a route ID. Both "jr-hokkaido.soya"
// and "soya" resolve; unknown IDs get the default profile and ok=false.
func LookupProfile(routeID string) (types.RouteVulnerabilityProfile, bool) {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(routeID)), routePrefix)
	p, ok := profiles[key]
	if !ok {
		d := defaultProfile
		d.SafeWindDirections = nil
		return d, false
	}
	p.RouteID = routePrefix + key
	p.SafeWindDirections = append([]types.DirectionRange(nil), p.SafeWindDirections...)
	return p, true
}

// Profiles lists every known route profile ordered by route ID.
func Profiles() []types.RouteVulnerabilityProfile {
	out := make([]types.RouteVulnerabilityProfile, 0, len(profiles))
	for key := range profiles {
		p, _ := LookupProfile(key)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}
