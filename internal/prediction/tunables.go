// Package prediction implements the railway suspension-risk engine: the risk
// factor evaluator, confidence filter, status classifier, resumption
// estimator and trend generator, plus the Engine that composes them with an
// optional trained model.
package prediction

import (
	"time"

	"railrisk/internal/config"
)

// Tunables is the single table of numeric parameters used by the engine.
// Every literal threshold the engine compares against lives here; the values
// were fitted against recorded operator outcomes and are expected to move.
type Tunables struct {
	// Location is the operator's local time zone. Rush hours, seasons and
	// "same day" are judged in it.
	Location *time.Location

	NearRealTimeWindow time.Duration
	OfficialStaleAfter time.Duration

	Bands StatusBands
	Caps  ProbabilityCaps

	Wind      WindTunables
	Gust      GustTunables
	Snow      SnowTunables
	Rain      RainTunables
	Cold      ColdTunables
	Pressure  PressureTunables
	Warnings  WarningTunables
	Deer      DeerTunables
	Official  OfficialTunables
	Winter    WinterTunables
	Compound  CompoundTunables
	Filter    FilterTunables
	History   HistoryTunables
	Calibrate CalibrationTunables
	BaseState BaseStateTunables
	Resume    ResumptionTunables

	// RushHourMultipliers scale the score by local hour of day.
	RushHourMultipliers map[int]float64
	// SeasonMultipliers scale the score by local month.
	SeasonMultipliers   map[time.Month]float64

	PrecedentBonus      float64
	MaxReasons          int
	RecoveryProbability int
	TrendRadius         int
	TimeShiftReduction  int
	ConsensusMinReports int
}

// StatusBands are the probability cut points for the discrete status.
type StatusBands struct {
	Suspended int
	Delayed   int
	Caution   int
}

// ProbabilityCaps bound the final probability by official context.
type ProbabilityCaps struct {
	NoOfficial           int
	Suspended            int
	Delay                int
	Partial              int
	UserConsensus        int
	UserConsensusReports int
	OfficialNormal       int
	OfficialNormalSevere int
	SevereGust           float64
	SevereSnowfall       float64
}

type WindTunables struct {
	LightMin                float64
	LightScore              float64
	ModerateMin             float64
	ModerateBase            float64
	ModerateCoef            float64
	StrongBase              float64
	StrongCoef              float64
	StrongMaxBonus          float64
	SafeDirectionMultiplier float64
	StormWindSpeed          float64
}

type GustTunables struct {
	Danger            float64
	Base              float64
	MaxBonus          float64
	UnstableMeanBelow float64
	UnstableRatio     float64
	UnstableScale     float64
	StormGust         float64
}

type SnowTunables struct {
	LightMin      float64
	LightScore    float64
	ModerateMin   float64
	ModerateBase  float64
	ModerateCoef  float64
	HeavyBase     float64
	HeavyCoef     float64
	HeavyMaxBonus float64
	DisasterFall  float64
	DisasterScore float64
	RecordFall    float64
	RecordScore   float64

	SurgeMin  float64
	SurgeBase float64
	SurgeCoef float64

	DepthActiveSnowfall float64
	DepthModerate       float64
	DepthModerateScore  float64
	DepthCritical       float64
	DepthCriticalScore  float64

	DriftDepth float64
	DriftTemp  float64
	DriftWind  float64
	DriftBase  float64
	DriftCoef  float64
	DriftMax   float64

	WetTempMin float64
	WetTempMax float64
	WetMin     float64
	WetBase    float64
	WetCoef    float64
	WetMax     float64

	PlannedClearingDepth float64
	PlannedClearingHour  int
	PlannedClearingScore float64
}

type RainTunables struct {
	ModerateMin   float64
	ModerateBase  float64
	ModerateCoef  float64
	HeavyMin      float64
	HeavyBase     float64
	HeavyCoef     float64
	HeavyMaxBonus float64
}

type ColdTunables struct {
	Threshold float64
	Base      float64
	Coef      float64
	Max       float64
}

type PressureTunables struct {
	LookbackHours int
	DropMin       float64
	DropBase      float64
	DropCoef      float64
	DropMax       float64
}

type WarningTunables struct {
	Storm           float64
	StormSevere     float64
	HeavySnow       float64
	HeavySnowSevere float64
	HeavyRain       float64
	Thunder         float64
}

type DeerTunables struct {
	Score        float64
	FromMonth    time.Month
	ToMonth      time.Month
	EveningStart int
	MorningEnd   int
}

type OfficialTunables struct {
	SuspendedWeight float64
	PartialWeight   float64
	DelayWeight     float64
}

type WinterTunables struct {
	Base  float64
	Coef  float64
	Pivot float64
}

type CompoundTunables struct {
	Ratio              float64
	Base               float64
	Bonus              float64
	Max                float64
	CriticalPriority   int
	CriticalCount      int
	CriticalMultiplier float64
}

// FilterTunables drive the confidence filter. The ratios come from config.
type FilterTunables struct {
	WeakWind     float64
	WeakGust     float64
	WeakSnowfall float64

	OfficialRatio    float64
	OfficialBandLow  int
	OfficialBandHigh int
	OfficialMaxScore float64

	DefaultRatio    float64
	DefaultBandLow  int
	DefaultBandHigh int
	DefaultMaxScore float64
}

type HistoryTunables struct {
	Weight            float64
	IncreasingBonus   int
	DecreasingPenalty int
	DisplayRate       float64
	TrendWindow       time.Duration
}

type CalibrationTunables struct {
	FromHours       float64
	ToHours         float64
	Decay           float64
	SuspendedDecay  float64
	ReasonThreshold float64
	OverrideDelta   float64
	// A downward correction never takes the probability below ExtremeFloor
	// while the current gust or snowfall is at or above these values.
	ExtremeGust     float64
	ExtremeSnowfall float64
	ExtremeFloor    int
}

// BaseStateTunables govern how the official text maps onto floors and caps.
type BaseStateTunables struct {
	PartialFloor    int
	PartialMax      int
	DelayFloor      int
	DelayMax        int
	ChaosWindow     time.Duration
	DeepSnowChaos   time.Duration
	DeepSnowDepth   float64
	ChaosFloor      int
	AfterChaosFloor int
}

// ResumptionTunables drive the safe-window search.
type ResumptionTunables struct {
	WindowHours          int
	HeavySnowWindowHours int
	HeavySnowfall        float64
	LookaheadHours       int

	SafeWind     float64
	SafeGust     float64
	SafeSnowfall float64

	InspectionHours  float64
	WindCoef         float64
	ViolentGust      float64
	ViolentGustHours float64
	DepthSafe        float64
	DepthCoef        float64
	RoundTo          time.Duration
}

// DefaultTunables returns the fitted defaults.
func DefaultTunables() Tunables {
	return Tunables{
		Location:           time.FixedZone("JST", 9*60*60),
		NearRealTimeWindow: 45 * time.Minute,
		OfficialStaleAfter: 30 * time.Minute,
		Bands:              StatusBands{Suspended: 70, Delayed: 50, Caution: 20},
		Caps: ProbabilityCaps{
			NoOfficial:           85,
			Suspended:            100,
			Delay:                90,
			Partial:              95,
			UserConsensus:        95,
			UserConsensusReports: 5,
			OfficialNormal:       35,
			OfficialNormalSevere: 50,
			SevereGust:           25,
			SevereSnowfall:       3,
		},
		Wind: WindTunables{
			LightMin:                5,
			LightScore:              3,
			ModerateMin:             13,
			ModerateBase:            10,
			ModerateCoef:            1.5,
			StrongBase:              50,
			StrongCoef:              3,
			StrongMaxBonus:          40,
			SafeDirectionMultiplier: 0.3,
			StormWindSpeed:          20,
		},
		Gust: GustTunables{
			Danger:            25,
			Base:              20,
			MaxBonus:          25,
			UnstableMeanBelow: 15,
			UnstableRatio:     3,
			UnstableScale:     0.5,
			StormGust:         25,
		},
		Snow: SnowTunables{
			LightMin:      0.5,
			LightScore:    5,
			ModerateMin:   2,
			ModerateBase:  25,
			ModerateCoef:  15,
			HeavyBase:     65,
			HeavyCoef:     10,
			HeavyMaxBonus: 30,
			DisasterFall:  5,
			DisasterScore: 90,
			RecordFall:    10,
			RecordScore:   100,

			SurgeMin:  3,
			SurgeBase: 15,
			SurgeCoef: 5,

			DepthActiveSnowfall: 1,
			DepthModerate:       15,
			DepthModerateScore:  20,
			DepthCritical:       40,
			DepthCriticalScore:  50,

			DriftDepth: 5,
			DriftTemp:  -2,
			DriftWind:  10,
			DriftBase:  10,
			DriftCoef:  1,
			DriftMax:   20,

			WetTempMin: -1,
			WetTempMax: 2,
			WetMin:     1,
			WetBase:    20,
			WetCoef:    10,
			WetMax:     40,

			PlannedClearingDepth: 5,
			PlannedClearingHour:  20,
			PlannedClearingScore: 20,
		},
		Rain: RainTunables{
			ModerateMin:   10,
			ModerateBase:  5,
			ModerateCoef:  0.4,
			HeavyMin:      30,
			HeavyBase:     25,
			HeavyCoef:     0.5,
			HeavyMaxBonus: 20,
		},
		Cold:     ColdTunables{Threshold: -15, Base: 5, Coef: 1, Max: 15},
		Pressure: PressureTunables{LookbackHours: 3, DropMin: 3, DropBase: 5, DropCoef: 3, DropMax: 25},
		Warnings: WarningTunables{
			Storm:           80,
			StormSevere:     100,
			HeavySnow:       70,
			HeavySnowSevere: 100,
			HeavyRain:       60,
			Thunder:         10,
		},
		Deer:     DeerTunables{Score: 10, FromMonth: time.October, ToMonth: time.March, EveningStart: 16, MorningEnd: 6},
		Official: OfficialTunables{SuspendedWeight: 80, PartialWeight: 40, DelayWeight: 15},
		Winter:   WinterTunables{Base: 5, Coef: 3, Pivot: 0.8},
		Compound: CompoundTunables{
			Ratio:              0.7,
			Base:               20,
			Bonus:              25,
			Max:                60,
			CriticalPriority:   4,
			CriticalCount:      2,
			CriticalMultiplier: 1.5,
		},
		Filter: FilterTunables{
			WeakWind:     20,
			WeakGust:     30,
			WeakSnowfall: 5,

			OfficialRatio:    0.4,
			OfficialBandLow:  10,
			OfficialBandHigh: 80,
			OfficialMaxScore: 100,

			DefaultRatio:    0.8,
			DefaultBandLow:  30,
			DefaultBandHigh: 60,
			DefaultMaxScore: 40,
		},
		History: HistoryTunables{
			Weight:            0.25,
			IncreasingBonus:   3,
			DecreasingPenalty: 2,
			DisplayRate:       20,
			TrendWindow:       7 * 24 * time.Hour,
		},
		Calibrate: CalibrationTunables{
			FromHours:       -1,
			ToHours:         12,
			Decay:           0.8,
			SuspendedDecay:  0.9,
			ReasonThreshold: 15,
			OverrideDelta:   5,
			ExtremeGust:     18,
			ExtremeSnowfall: 3,
			ExtremeFloor:    30,
		},
		BaseState: BaseStateTunables{
			PartialFloor:    60,
			PartialMax:      95,
			DelayFloor:      40,
			DelayMax:        75,
			ChaosWindow:     2 * time.Hour,
			DeepSnowChaos:   3 * time.Hour,
			DeepSnowDepth:   30,
			ChaosFloor:      60,
			AfterChaosFloor: 20,
		},
		Resume: ResumptionTunables{
			WindowHours:          3,
			HeavySnowWindowHours: 4,
			HeavySnowfall:        5,
			LookaheadHours:       24,
			SafeWind:             20,
			SafeGust:             30,
			SafeSnowfall:         3,
			InspectionHours:      1,
			WindCoef:             0.25,
			ViolentGust:          28.5,
			ViolentGustHours:     2,
			DepthSafe:            20,
			DepthCoef:            0.05,
			RoundTo:              15 * time.Minute,
		},
		RushHourMultipliers: map[int]float64{
			6: 1.1, 7: 1.25, 8: 1.25, 9: 1.15,
			17: 1.2, 18: 1.2, 19: 1.1,
		},
		SeasonMultipliers: map[time.Month]float64{
			time.December: 1.05, time.January: 1.1, time.February: 1.1, time.March: 1.05,
		},
		PrecedentBonus:      20,
		MaxReasons:          5,
		RecoveryProbability: 40,
		TrendRadius:         2,
		TimeShiftReduction:  20,
		ConsensusMinReports: 3,
	}
}

// TunablesFromConfig overlays the configurable subset onto the defaults.
func TunablesFromConfig(cfg config.PredictionConfig) Tunables {
	t := DefaultTunables()
	if cfg.NearRealTimeWindow > 0 {
		t.NearRealTimeWindow = cfg.NearRealTimeWindow
	}
	if cfg.OfficialStaleAfter > 0 {
		t.OfficialStaleAfter = cfg.OfficialStaleAfter
	}
	if cfg.SuppressRatioOfficial > 0 {
		t.Filter.OfficialRatio = cfg.SuppressRatioOfficial
	}
	if cfg.SuppressRatioDefault > 0 {
		t.Filter.DefaultRatio = cfg.SuppressRatioDefault
	}
	if cfg.BandSuspended > 0 {
		t.Bands = StatusBands{
			Suspended: cfg.BandSuspended,
			Delayed:   cfg.BandDelayed,
			Caution:   cfg.BandCaution,
		}
	}
	if cfg.ResumptionLookahead > 0 {
		t.Resume.LookaheadHours = cfg.ResumptionLookahead
	}
	return t
}
