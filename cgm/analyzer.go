package cgm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/dates"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/nightscout"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/stats"

	"go.uber.org/zap"
)

// ErrNoData means the window holds no readings and none could be
// fetched. Distinct from invalid user input.
var ErrNoData = errors.New("no data available")

// ProblemTIRLimit is the time-in-range percentage below which an hour
// of day is flagged as a problem time.
const ProblemTIRLimit = 70.0

type AnalyzerStore interface {
	sqlstore.ReadingStore
}

// Ingestor is the freshness gate applied before every read.
type Ingestor interface {
	EnsureData(ctx context.Context, days int) bool
}

// Analyzer answers the pattern and trend questions over stored
// readings. Thresholds and the display unit are resolved fresh on every
// call, never cached.
type Analyzer struct {
	Store    AnalyzerStore
	Ingestor Ingestor
	Settings nightscout.SettingsSource

	Logger   *zap.Logger
	Location *time.Location

	// Fallback thresholds when the remote settings carry none.
	Fallback defs.Thresholds

	// Now is the injected clock; nil means time.Now.
	Now func() time.Time
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now().In(a.Location)
	}
	return time.Now().In(a.Location)
}

// resolveSettings pulls the remote unit and threshold preferences once
// for the current call. Any failure falls back to defaults; display
// preferences are never a reason to refuse analysis.
func (a *Analyzer) resolveSettings(ctx context.Context) defs.GlucoseSettings {
	fallback := a.Fallback
	if fallback == (defs.Thresholds{}) {
		fallback = defs.DefaultThresholds
	}

	remote, err := a.Settings.Settings(ctx)
	if err != nil {
		a.Logger.Debug("unable to resolve remote settings, using defaults", zap.Error(err))
		return defs.GlucoseSettings{Thresholds: fallback}
	}
	return remote.Resolve(fallback)
}

func (a *Analyzer) window(days int) (time.Time, time.Time) {
	end := a.now()
	return end.AddDate(0, 0, -days), end
}

func values(readings []defs.Reading) []int {
	vs := make([]int, len(readings))
	for i, r := range readings {
		vs[i] = r.SGV
	}
	return vs
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// AnalyzeCGM builds the full report over the trailing window.
func (a *Analyzer) AnalyzeCGM(ctx context.Context, days int) (*defs.Analysis, error) {
	if !a.Ingestor.EnsureData(ctx, days) {
		return nil, ErrNoData
	}

	gs := a.resolveSettings(ctx)
	start, end := a.window(days)

	readings, err := a.Store.Readings(ctx, sqlstore.Query{
		StartMs: start.UnixMilli(),
		EndMs:   end.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read window: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	vs := values(readings)
	summary := stats.Glucose(vs, gs.UseMmol)
	tir := stats.TimeInRange(vs, gs.Thresholds)

	// GMI and CV work on the raw mg/dL magnitudes, before any display
	// conversion.
	var meanMgdl float64
	for _, v := range vs {
		meanMgdl += float64(v)
	}
	meanMgdl /= float64(len(vs))
	cv := stats.CoefficientOfVariation(vs)

	return &defs.Analysis{
		DateRange:       defs.DateRange{Start: start, End: end},
		Readings:        len(readings),
		Statistics:      *summary,
		TimeInRange:     *tir,
		GMIEstimatedA1C: stats.EstimateA1C(meanMgdl),
		CVVariability:   cv,
		CVStatus:        stats.CVStatus(cv),
		HourlyAverages:  a.hourlyAverages(readings, gs.UseMmol),
	}, nil
}

// hourlyAverages is the mean display-unit value per local hour of day.
// Hours without readings are absent from the map.
func (a *Analyzer) hourlyAverages(readings []defs.Reading, useMmol bool) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, r := range readings {
		hour := r.Time().In(a.Location).Hour()
		sums[hour] += float64(r.SGV)
		counts[hour]++
	}

	out := make(map[int]float64, len(sums))
	for hour, sum := range sums {
		out[hour] = stats.Convert(round1(sum/float64(counts[hour])), useMmol)
	}
	return out
}

// QueryPatterns reports statistics over a pre-filtered window slice.
func (a *Analyzer) QueryPatterns(ctx context.Context, days int, weekday *time.Weekday, hourStart, hourEnd *int) (*defs.PatternQuery, error) {
	if !a.Ingestor.EnsureData(ctx, days) {
		return nil, ErrNoData
	}

	gs := a.resolveSettings(ctx)
	start, end := a.window(days)

	readings, err := a.Store.Readings(ctx, sqlstore.Query{
		StartMs:   start.UnixMilli(),
		EndMs:     end.UnixMilli(),
		Weekday:   weekday,
		HourStart: hourStart,
		HourEnd:   hourEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read window: %w", err)
	}

	pq := &defs.PatternQuery{
		Filter:   filterLabel(weekday, hourStart, hourEnd),
		Readings: len(readings),
	}
	vs := values(readings)
	if s := stats.Glucose(vs, gs.UseMmol); s != nil {
		pq.Statistics = *s
	}
	if tir := stats.TimeInRange(vs, gs.Thresholds); tir != nil {
		pq.TimeInRange = *tir
	}
	return pq, nil
}

// filterLabel is the human description of the active restrictions,
// present even when there are none.
func filterLabel(weekday *time.Weekday, hourStart, hourEnd *int) string {
	label := ""
	if weekday != nil {
		label = "day=" + weekday.String()
	}
	if hourStart != nil && hourEnd != nil {
		if label != "" {
			label += " "
		}
		label += fmt.Sprintf("hours=%02d:00-%02d:00", *hourStart, *hourEnd)
	}
	if label == "" {
		return "none"
	}
	return label
}

// FindPatterns surfaces the best and worst hours of day and weekdays by
// time in range, plus every hour below the problem threshold.
func (a *Analyzer) FindPatterns(ctx context.Context, days int) (*defs.Insights, error) {
	if !a.Ingestor.EnsureData(ctx, days) {
		return nil, ErrNoData
	}

	gs := a.resolveSettings(ctx)
	start, end := a.window(days)

	readings, err := a.Store.Readings(ctx, sqlstore.Query{
		StartMs: start.UnixMilli(),
		EndMs:   end.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read window: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	byHour := make(map[int][]int)
	byDay := make(map[time.Weekday][]int)
	for _, r := range readings {
		local := r.Time().In(a.Location)
		byHour[local.Hour()] = append(byHour[local.Hour()], r.SGV)
		byDay[local.Weekday()] = append(byDay[local.Weekday()], r.SGV)
	}

	in := &defs.Insights{ProblemTimes: []defs.HourInsight{}}

	// Ascending hour order makes the earlier hour win ties.
	first := true
	for hour := 0; hour < 24; hour++ {
		vs, ok := byHour[hour]
		if !ok {
			continue
		}
		tir := round1(stats.TimeInRange(vs, gs.Thresholds).InRangePct)
		hi := defs.HourInsight{Hour: hour, TimeInRange: tir}
		if first || tir > in.BestTimeOfDay.TimeInRange {
			in.BestTimeOfDay = hi
		}
		if first || tir < in.WorstTimeOfDay.TimeInRange {
			in.WorstTimeOfDay = hi
		}
		if tir < ProblemTIRLimit {
			in.ProblemTimes = append(in.ProblemTimes, hi)
		}
		first = false
	}

	first = true
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		vs, ok := byDay[wd]
		if !ok {
			continue
		}
		tir := round1(stats.TimeInRange(vs, gs.Thresholds).InRangePct)
		di := defs.DayInsight{Day: wd, TimeInRange: tir}
		if first || tir > in.BestDay.TimeInRange {
			in.BestDay = di
		}
		if first || tir < in.WorstDay.TimeInRange {
			in.WorstDay = di
		}
		first = false
	}

	sort.SliceStable(in.ProblemTimes, func(i, j int) bool {
		return in.ProblemTimes[i].TimeInRange < in.ProblemTimes[j].TimeInRange
	})
	return in, nil
}

// ViewDay returns one local calendar day of readings with band tags and
// day-level statistics.
func (a *Analyzer) ViewDay(ctx context.Context, dateArg string, hourStart, hourEnd *int) (*defs.DayView, error) {
	day, err := dates.Parse(dateArg, a.now())
	if err != nil {
		return nil, err
	}

	if !a.Ingestor.EnsureData(ctx, 1) {
		return nil, ErrNoData
	}

	gs := a.resolveSettings(ctx)
	start := day
	end := day.AddDate(0, 0, 1)

	readings, err := a.Store.Readings(ctx, sqlstore.Query{
		StartMs:   start.UnixMilli(),
		EndMs:     end.UnixMilli(),
		HourStart: hourStart,
		HourEnd:   hourEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read day: %w", err)
	}

	view := &defs.DayView{
		Date:     day.Format("2006-01-02"),
		Filter:   dayFilterLabel(hourStart, hourEnd),
		Readings: make([]defs.DayReading, 0, len(readings)),
	}
	if len(readings) == 0 {
		return view, nil
	}

	peak, trough := readings[0], readings[0]
	var sum float64
	for _, r := range readings {
		local := r.Time().In(a.Location)
		view.Readings = append(view.Readings, defs.DayReading{
			Time:   local.Format("15:04"),
			Value:  stats.Convert(float64(r.SGV), gs.UseMmol),
			Status: stats.Classify(r.SGV, gs.Thresholds),
		})
		sum += float64(r.SGV)
		// First occurrence wins ties.
		if r.SGV > peak.SGV {
			peak = r
		}
		if r.SGV < trough.SGV {
			trough = r
		}
	}

	vs := values(readings)
	tir := stats.TimeInRange(vs, gs.Thresholds)
	minV, maxV := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	view.Statistics = defs.DayStats{
		Average:        stats.Convert(round1(sum/float64(len(vs))), gs.UseMmol),
		Min:            stats.Convert(float64(minV), gs.UseMmol),
		Max:            stats.Convert(float64(maxV), gs.UseMmol),
		TimeInRangePct: round1(tir.InRangePct),
		PeakTime:       peak.Time().In(a.Location).Format("15:04"),
		TroughTime:     trough.Time().In(a.Location).Format("15:04"),
	}
	return view, nil
}

func dayFilterLabel(hourStart, hourEnd *int) string {
	if hourStart != nil && hourEnd != nil {
		return fmt.Sprintf("hours=%02d:00-%02d:00", *hourStart, *hourEnd)
	}
	return "full day"
}

// FindWorstDays ranks calendar dates by their glucose peak.
func (a *Analyzer) FindWorstDays(ctx context.Context, days, limit int, hourStart, hourEnd *int) (*defs.WorstDays, error) {
	if !a.Ingestor.EnsureData(ctx, days) {
		return nil, ErrNoData
	}

	gs := a.resolveSettings(ctx)
	start, end := a.window(days)

	readings, err := a.Store.Readings(ctx, sqlstore.Query{
		StartMs:   start.UnixMilli(),
		EndMs:     end.UnixMilli(),
		HourStart: hourStart,
		HourEnd:   hourEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read window: %w", err)
	}

	byDate := make(map[string][]int)
	for _, r := range readings {
		date := r.Time().In(a.Location).Format("2006-01-02")
		byDate[date] = append(byDate[date], r.SGV)
	}

	out := &defs.WorstDays{
		Filter: dayFilterLabel(hourStart, hourEnd),
		Days:   make([]defs.WorstDay, 0, len(byDate)),
	}
	for date, vs := range byDate {
		tir := stats.TimeInRange(vs, gs.Thresholds)
		day := defs.WorstDay{
			Date:           date,
			Peak:           vs[0],
			Trough:         vs[0],
			TimeInRangePct: round1(tir.InRangePct),
		}
		var sum float64
		for _, v := range vs {
			sum += float64(v)
			if v > day.Peak {
				day.Peak = v
			}
			if v < day.Trough {
				day.Trough = v
			}
			switch stats.Classify(v, gs.Thresholds) {
			case defs.BandHigh, defs.BandVeryHigh:
				day.HighReadings++
			case defs.BandLow, defs.BandVeryLow:
				day.LowReadings++
			}
		}
		day.Average = round1(sum / float64(len(vs)))
		out.Days = append(out.Days, day)
	}

	sort.Slice(out.Days, func(i, j int) bool {
		if out.Days[i].Peak != out.Days[j].Peak {
			return out.Days[i].Peak > out.Days[j].Peak
		}
		return out.Days[i].Date > out.Days[j].Date
	})
	if len(out.Days) > limit {
		out.Days = out.Days[:limit]
	}
	return out, nil
}
