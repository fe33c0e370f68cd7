package cgm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/dates"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/nightscout"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type fakeSettings struct {
	settings nightscout.Settings
	err      error
}

func (f *fakeSettings) Settings(_ context.Context) (nightscout.Settings, error) {
	return f.settings, f.err
}

type fakeIngestor struct {
	ok bool
}

func (f *fakeIngestor) EnsureData(_ context.Context, _ int) bool {
	return f.ok
}

type AnalyzerTestSuite struct {
	suite.Suite
	store *sqlstore.Store
	now   time.Time
	seq   int
}

func TestAnalyzerTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerTestSuite))
}

func (suite *AnalyzerTestSuite) SetupTest() {
	store, err := sqlstore.OpenMemory(time.UTC, zap.NewNop())
	if err != nil {
		panic(err)
	}
	suite.store = store
	// Thursday noon; the seeded days below are the Tuesday and
	// Wednesday before it.
	suite.now = time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	suite.seq = 0
}

func (suite *AnalyzerTestSuite) AfterTest(_, _ string) {
	assert.NoError(suite.T(), suite.store.Close())
}

func (suite *AnalyzerTestSuite) newAnalyzer() *Analyzer {
	return &Analyzer{
		Store:    suite.store,
		Ingestor: &fakeIngestor{ok: true},
		Settings: &fakeSettings{},
		Logger:   zap.NewNop(),
		Location: time.UTC,
		Now:      func() time.Time { return suite.now },
	}
}

func (suite *AnalyzerTestSuite) seed(t time.Time, sgv int) {
	suite.seq++
	_, err := suite.store.InsertBatch(context.Background(), []defs.Reading{{
		ID:         fmt.Sprintf("r%d", suite.seq),
		SGV:        sgv,
		DateMs:     t.UnixMilli(),
		DateString: t.Format(time.RFC3339),
	}})
	if err != nil {
		panic(err)
	}
}

// seedWeek writes a deterministic two-day fixture: a fully in-range
// Tuesday morning and a mostly high Wednesday afternoon.
func (suite *AnalyzerTestSuite) seedWeek() {
	tuesday := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	wednesday := tuesday.AddDate(0, 0, 1)

	for i, sgv := range []int{100, 110, 120} {
		suite.seed(tuesday.Add(8*time.Hour+time.Duration(i*5)*time.Minute), sgv)
	}
	for i, sgv := range []int{130, 140} {
		suite.seed(tuesday.Add(10*time.Hour+time.Duration(i*5)*time.Minute), sgv)
	}
	for i, sgv := range []int{300, 320, 310} {
		suite.seed(wednesday.Add(12*time.Hour+time.Duration(i*5)*time.Minute), sgv)
	}
	for i, sgv := range []int{100, 300} {
		suite.seed(wednesday.Add(16*time.Hour+time.Duration(i*5)*time.Minute), sgv)
	}
}

func (suite *AnalyzerTestSuite) TestAnalyzeCGM() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	report, err := an.AnalyzeCGM(context.Background(), 7)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 10, report.Readings)
	assert.Equal(suite.T(), "mg/dL", report.Statistics.Unit)

	// Overall mean is 193 mg/dL.
	assert.InDelta(suite.T(), 193.0, report.Statistics.Mean, 0.01)
	assert.InDelta(suite.T(), 7.93, report.GMIEstimatedA1C, 0.01)
	assert.GreaterOrEqual(suite.T(), report.GMIEstimatedA1C, 5.0)
	assert.LessOrEqual(suite.T(), report.GMIEstimatedA1C, 10.0)

	if report.CVVariability < 36 {
		assert.Equal(suite.T(), "stable", report.CVStatus)
	} else {
		assert.Equal(suite.T(), "high variability", report.CVStatus)
	}

	tir := report.TimeInRange
	sum := tir.VeryLowPct + tir.LowPct + tir.InRangePct + tir.HighPct + tir.VeryHighPct
	assert.InDelta(suite.T(), 100.0, sum, 0.1)

	// Only the four seeded hours appear.
	assert.Len(suite.T(), report.HourlyAverages, 4)
	assert.InDelta(suite.T(), 110.0, report.HourlyAverages[8], 0.01)
	assert.InDelta(suite.T(), 310.0, report.HourlyAverages[12], 0.01)
}

func (suite *AnalyzerTestSuite) TestAnalyzeCGMNoDataGate() {
	an := suite.newAnalyzer()
	an.Ingestor = &fakeIngestor{ok: false}

	_, err := an.AnalyzeCGM(context.Background(), 7)
	assert.ErrorIs(suite.T(), err, ErrNoData)
}

func (suite *AnalyzerTestSuite) TestAnalyzeCGMEmptyWindow() {
	an := suite.newAnalyzer()
	_, err := an.AnalyzeCGM(context.Background(), 7)
	assert.ErrorIs(suite.T(), err, ErrNoData)
}

func (suite *AnalyzerTestSuite) TestAnalyzeCGMMmolDisplay() {
	suite.seedWeek()
	an := suite.newAnalyzer()
	an.Settings = &fakeSettings{settings: nightscout.Settings{Units: "mmol/L"}}

	report, err := an.AnalyzeCGM(context.Background(), 7)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "mmol/L", report.Statistics.Unit)
	assert.InDelta(suite.T(), 10.7, report.Statistics.Mean, 0.1)

	// GMI always works on the mg/dL mean regardless of display unit.
	assert.InDelta(suite.T(), 7.93, report.GMIEstimatedA1C, 0.01)
}

func (suite *AnalyzerTestSuite) TestQueryPatternsFilters() {
	suite.seedWeek()
	an := suite.newAnalyzer()
	ctx := context.Background()

	pq, err := an.QueryPatterns(ctx, 7, nil, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "none", pq.Filter)
	assert.Equal(suite.T(), 10, pq.Readings)

	wd := time.Tuesday
	pq, err = an.QueryPatterns(ctx, 7, &wd, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Contains(suite.T(), pq.Filter, "Tuesday")
	assert.Equal(suite.T(), 5, pq.Readings)

	hs, he := 12, 14
	pq, err = an.QueryPatterns(ctx, 7, nil, &hs, &he)
	assert.NoError(suite.T(), err)
	assert.Contains(suite.T(), pq.Filter, "12:00")
	assert.Equal(suite.T(), 3, pq.Readings)

	hs, he = 8, 10
	pq, err = an.QueryPatterns(ctx, 7, &wd, &hs, &he)
	assert.NoError(suite.T(), err)
	assert.Contains(suite.T(), pq.Filter, "Tuesday")
	assert.Contains(suite.T(), pq.Filter, "08:00")
	assert.Equal(suite.T(), 5, pq.Readings)
}

func (suite *AnalyzerTestSuite) TestFindPatterns() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	in, err := an.FindPatterns(context.Background(), 7)
	assert.NoError(suite.T(), err)

	// Hours 8 and 10 are both fully in range; the earlier hour wins.
	assert.Equal(suite.T(), 8, in.BestTimeOfDay.Hour)
	assert.Equal(suite.T(), 100.0, in.BestTimeOfDay.TimeInRange)
	assert.Equal(suite.T(), 12, in.WorstTimeOfDay.Hour)
	assert.Equal(suite.T(), 0.0, in.WorstTimeOfDay.TimeInRange)
	assert.GreaterOrEqual(suite.T(), in.BestTimeOfDay.TimeInRange, in.WorstTimeOfDay.TimeInRange)

	assert.Equal(suite.T(), time.Tuesday, in.BestDay.Day)
	assert.Equal(suite.T(), time.Wednesday, in.WorstDay.Day)

	// Worst first: hour 12 at 0%, then hour 16 at 50%.
	assert.Len(suite.T(), in.ProblemTimes, 2)
	assert.Equal(suite.T(), 12, in.ProblemTimes[0].Hour)
	assert.Equal(suite.T(), 16, in.ProblemTimes[1].Hour)
}

func (suite *AnalyzerTestSuite) TestViewDay() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	view, err := an.ViewDay(context.Background(), "yesterday", nil, nil)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "2026-03-04", view.Date)
	assert.Equal(suite.T(), "full day", view.Filter)
	assert.Len(suite.T(), view.Readings, 5)

	for _, r := range view.Readings {
		assert.Contains(suite.T(), []defs.Band{
			defs.BandVeryLow, defs.BandLow, defs.BandInRange, defs.BandHigh, defs.BandVeryHigh,
		}, r.Status)
	}
	assert.Equal(suite.T(), defs.BandVeryHigh, view.Readings[0].Status)
	assert.Equal(suite.T(), defs.BandInRange, view.Readings[3].Status)

	st := view.Statistics
	assert.InDelta(suite.T(), 266.0, st.Average, 0.1)
	assert.Equal(suite.T(), 100.0, st.Min)
	assert.Equal(suite.T(), 320.0, st.Max)
	assert.InDelta(suite.T(), 20.0, st.TimeInRangePct, 0.01)
	assert.Equal(suite.T(), "12:05", st.PeakTime)
	assert.Equal(suite.T(), "16:00", st.TroughTime)
}

func (suite *AnalyzerTestSuite) TestViewDayHourFilter() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	hs, he := 12, 14
	view, err := an.ViewDay(context.Background(), "yesterday", &hs, &he)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hours=12:00-14:00", view.Filter)
	assert.Len(suite.T(), view.Readings, 3)
}

func (suite *AnalyzerTestSuite) TestViewDayInvalidDate() {
	an := suite.newAnalyzer()

	view, err := an.ViewDay(context.Background(), "not-a-date", nil, nil)
	assert.ErrorIs(suite.T(), err, dates.ErrInvalidDate)
	assert.Nil(suite.T(), view)
}

func (suite *AnalyzerTestSuite) TestFindWorstDays() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	wd, err := an.FindWorstDays(context.Background(), 7, 10, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "full day", wd.Filter)
	assert.Len(suite.T(), wd.Days, 2)

	// Sorted by peak descending.
	assert.Equal(suite.T(), "2026-03-04", wd.Days[0].Date)
	assert.Equal(suite.T(), 320, wd.Days[0].Peak)
	assert.Equal(suite.T(), 100, wd.Days[0].Trough)
	assert.Equal(suite.T(), 4, wd.Days[0].HighReadings)
	assert.Equal(suite.T(), 0, wd.Days[0].LowReadings)
	assert.InDelta(suite.T(), 20.0, wd.Days[0].TimeInRangePct, 0.01)

	assert.Equal(suite.T(), "2026-03-03", wd.Days[1].Date)
	assert.Equal(suite.T(), 140, wd.Days[1].Peak)
	assert.Equal(suite.T(), 100.0, wd.Days[1].TimeInRangePct)

	for i := 1; i < len(wd.Days); i++ {
		assert.GreaterOrEqual(suite.T(), wd.Days[i-1].Peak, wd.Days[i].Peak)
	}
}

func (suite *AnalyzerTestSuite) TestFindWorstDaysLimit() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	wd, err := an.FindWorstDays(context.Background(), 7, 1, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), wd.Days, 1)
	assert.Equal(suite.T(), "2026-03-04", wd.Days[0].Date)
}

func (suite *AnalyzerTestSuite) TestFindWorstDaysHourFilter() {
	suite.seedWeek()
	an := suite.newAnalyzer()

	hs, he := 11, 14
	wd, err := an.FindWorstDays(context.Background(), 7, 10, &hs, &he)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hours=11:00-14:00", wd.Filter)
	assert.Len(suite.T(), wd.Days, 1)
	assert.Equal(suite.T(), "2026-03-04", wd.Days[0].Date)
}

func (suite *AnalyzerTestSuite) TestSettingsFailureFallsBackToDefaults() {
	suite.seedWeek()
	an := suite.newAnalyzer()
	an.Settings = &fakeSettings{err: fmt.Errorf("status unreachable")}

	report, err := an.AnalyzeCGM(context.Background(), 7)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "mg/dL", report.Statistics.Unit)
}
