package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type DatesTestSuite struct {
	suite.Suite
	now time.Time
}

func TestDatesTestSuite(t *testing.T) {
	suite.Run(t, new(DatesTestSuite))
}

func (suite *DatesTestSuite) SetupSuite() {
	suite.now = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)
}

func (suite *DatesTestSuite) TestToday() {
	d, err := Parse("today", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), d)
}

func (suite *DatesTestSuite) TestYesterday() {
	d, err := Parse("yesterday", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), d)
}

func (suite *DatesTestSuite) TestCaseInsensitive() {
	d1, err1 := Parse("TODAY", suite.now)
	d2, err2 := Parse("Today", suite.now)
	d3, err3 := Parse("today", suite.now)
	assert.NoError(suite.T(), err1)
	assert.NoError(suite.T(), err2)
	assert.NoError(suite.T(), err3)
	assert.Equal(suite.T(), d1, d2)
	assert.Equal(suite.T(), d2, d3)
}

func (suite *DatesTestSuite) TestISOFormat() {
	d, err := Parse("2026-01-15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2026, d.Year())
	assert.Equal(suite.T(), time.January, d.Month())
	assert.Equal(suite.T(), 15, d.Day())
}

func (suite *DatesTestSuite) TestShortMonth() {
	d, err := Parse("Jan 15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.January, d.Month())
	assert.Equal(suite.T(), 15, d.Day())
	assert.Equal(suite.T(), suite.now.Year(), d.Year())
}

func (suite *DatesTestSuite) TestFullMonth() {
	d, err := Parse("January 15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.January, d.Month())
	assert.Equal(suite.T(), 15, d.Day())
}

func (suite *DatesTestSuite) TestMonthCaseInsensitive() {
	d, err := Parse("january 15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.January, d.Month())

	d, err = Parse("JAN 15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.January, d.Month())
}

func (suite *DatesTestSuite) TestSlashFormat() {
	d, err := Parse("01/15", suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.January, d.Month())
	assert.Equal(suite.T(), 15, d.Day())
	assert.Equal(suite.T(), suite.now.Year(), d.Year())
}

func (suite *DatesTestSuite) TestInvalidDate() {
	_, err := Parse("not-a-date", suite.now)
	assert.ErrorIs(suite.T(), err, ErrInvalidDate)

	_, err = Parse("32/13/2026", suite.now)
	assert.ErrorIs(suite.T(), err, ErrInvalidDate)
}

func (suite *DatesTestSuite) TestParseWeekday() {
	for _, tc := range []struct {
		in   string
		want time.Weekday
	}{
		{"Monday", time.Monday},
		{"monday", time.Monday},
		{"MON", time.Monday},
		{"tue", time.Tuesday},
		{"Saturday", time.Saturday},
		{"sun", time.Sunday},
	} {
		wd, err := ParseWeekday(tc.in)
		assert.NoError(suite.T(), err, tc.in)
		assert.Equal(suite.T(), tc.want, wd, tc.in)
	}
}

func (suite *DatesTestSuite) TestParseWeekdayInvalid() {
	_, err := ParseWeekday("someday")
	assert.Error(suite.T(), err)
}
