package defs

import "time"

// Reading is one stored glucose observation. SGV is always mg/dL;
// DateMs is the canonical timestamp, DateString is display-only.
type Reading struct {
	ID         string
	SGV        int
	DateMs     int64
	DateString string

	// Optional metadata, absent on some uploaders.
	Trend     *int
	Direction *string
	Device    *string
}

func (r Reading) Time() time.Time {
	return time.UnixMilli(r.DateMs)
}

// Thresholds are the mg/dL band boundaries,
// urgent low < target low < target high < urgent high.
type Thresholds struct {
	UrgentLow  int
	TargetLow  int
	TargetHigh int
	UrgentHigh int
}

var DefaultThresholds = Thresholds{
	UrgentLow:  55,
	TargetLow:  70,
	TargetHigh: 180,
	UrgentHigh: 250,
}

// GlucoseSettings is the per-call resolution of the remote preferences:
// display unit plus band thresholds.
type GlucoseSettings struct {
	UseMmol    bool
	Thresholds Thresholds
}

// Band is the range classification of a single value.
type Band string

const (
	BandVeryLow  Band = "very_low"
	BandLow      Band = "low"
	BandInRange  Band = "in_range"
	BandHigh     Band = "high"
	BandVeryHigh Band = "very_high"
)

// FetchResult reports a completed fetch-and-store pass.
type FetchResult struct {
	NewReadings   int
	TotalReadings int
}

// Analysis is the full window report.
type Analysis struct {
	DateRange       DateRange
	Readings        int
	Statistics      Summary
	TimeInRange     RangeBreakdown
	GMIEstimatedA1C float64
	CVVariability   float64
	CVStatus        string
	HourlyAverages  map[int]float64
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

// Summary holds the basic statistics of a value set, already converted
// to the display unit named by Unit.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Std    float64
	Unit   string
}

// RangeBreakdown is the share of readings per band, in percent.
// The five fields sum to 100 for any non-empty input.
type RangeBreakdown struct {
	VeryLowPct  float64
	LowPct      float64
	InRangePct  float64
	HighPct     float64
	VeryHighPct float64
}

// PatternQuery is a filtered slice of the window with its statistics.
type PatternQuery struct {
	Filter      string
	Readings    int
	Statistics  Summary
	TimeInRange RangeBreakdown
}

// HourInsight scores one local hour of day by its time in range.
type HourInsight struct {
	Hour        int
	TimeInRange float64
}

// DayInsight scores one weekday by its time in range.
type DayInsight struct {
	Day         time.Weekday
	TimeInRange float64
}

type Insights struct {
	BestTimeOfDay  HourInsight
	WorstTimeOfDay HourInsight
	BestDay        DayInsight
	WorstDay       DayInsight
	ProblemTimes   []HourInsight
}

// DayView is a single local calendar day of readings.
type DayView struct {
	Date       string
	Filter     string
	Readings   []DayReading
	Statistics DayStats
}

type DayReading struct {
	Time   string
	Value  float64
	Status Band
}

type DayStats struct {
	Average        float64
	Min            float64
	Max            float64
	TimeInRangePct float64
	PeakTime       string
	TroughTime     string
}

// WorstDay summarizes one calendar date. Peak, trough and average stay
// in mg/dL.
type WorstDay struct {
	Date           string
	Peak           int
	Trough         int
	Average        float64
	TimeInRangePct float64
	HighReadings   int
	LowReadings    int
}

type WorstDays struct {
	Filter string
	Days   []WorstDay
}
