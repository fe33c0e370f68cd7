// Package display renders readings as terminal charts: sparklines, an
// hour-by-day heatmap, and per-weekday range bars.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/stats"

	"github.com/fatih/color"
)

// Renderer writes charts for one resolved settings context.
type Renderer struct {
	Out      io.Writer
	Location *time.Location
	Settings defs.GlucoseSettings

	// NoColor disables ANSI sequences, for piped output.
	NoColor bool
}

func (r *Renderer) paint(b defs.Band, s string) string {
	if r.NoColor {
		return s
	}
	switch b {
	case defs.BandVeryLow, defs.BandVeryHigh:
		return color.New(color.FgRed).Sprint(s)
	case defs.BandLow, defs.BandHigh:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgGreen).Sprint(s)
	}
}

// Sparkline renders a titled sparkline with a readings/average/range
// footer. Values are colored by band.
func (r *Renderer) Sparkline(title string, readings []defs.Reading) {
	if len(readings) == 0 {
		fmt.Fprintln(r.Out, "no data")
		return
	}

	vs := make([]float64, len(readings))
	for i, rd := range readings {
		vs[i] = float64(rd.SGV)
	}

	line := stats.Sparkline(vs)
	var b strings.Builder
	for i, glyph := range []rune(line) {
		b.WriteString(r.paint(stats.Classify(readings[i].SGV, r.Settings.Thresholds), string(glyph)))
	}

	summary := stats.Glucose(intValues(readings), r.Settings.UseMmol)
	fmt.Fprintln(r.Out, title)
	fmt.Fprintln(r.Out, b.String())
	fmt.Fprintf(r.Out, "Readings: %d  Avg: %.1f %s  Range: %.1f-%.1f\n",
		summary.Count, summary.Mean, summary.Unit, summary.Min, summary.Max)
}

// Heatmap renders mean glucose per local hour, one row per date.
func (r *Renderer) Heatmap(readings []defs.Reading) {
	if len(readings) == 0 {
		fmt.Fprintln(r.Out, "no data")
		return
	}

	type cell struct {
		sum   float64
		count int
	}
	grid := make(map[string]map[int]*cell)
	for _, rd := range readings {
		local := rd.Time().In(r.Location)
		date := local.Format("2006-01-02")
		if grid[date] == nil {
			grid[date] = make(map[int]*cell)
		}
		c := grid[date][local.Hour()]
		if c == nil {
			c = &cell{}
			grid[date][local.Hour()] = c
		}
		c.sum += float64(rd.SGV)
		c.count++
	}

	dts := make([]string, 0, len(grid))
	for date := range grid {
		dts = append(dts, date)
	}
	sort.Strings(dts)

	fmt.Fprint(r.Out, "          ")
	for hour := 0; hour < 24; hour += 3 {
		fmt.Fprintf(r.Out, "%-6d", hour)
	}
	fmt.Fprintln(r.Out)

	for _, date := range dts {
		fmt.Fprintf(r.Out, "%s ", date)
		for hour := 0; hour < 24; hour++ {
			c := grid[date][hour]
			if c == nil {
				fmt.Fprint(r.Out, "·")
				continue
			}
			mean := int(c.sum / float64(c.count))
			fmt.Fprint(r.Out, r.paint(stats.Classify(mean, r.Settings.Thresholds), "█"))
		}
		fmt.Fprintln(r.Out)
	}
}

// DayChart renders a time-in-range bar per weekday.
func (r *Renderer) DayChart(readings []defs.Reading) {
	if len(readings) == 0 {
		fmt.Fprintln(r.Out, "no data")
		return
	}

	byDay := make(map[time.Weekday][]int)
	for _, rd := range readings {
		wd := rd.Time().In(r.Location).Weekday()
		byDay[wd] = append(byDay[wd], rd.SGV)
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		vs, ok := byDay[wd]
		if !ok {
			continue
		}
		tir := stats.TimeInRange(vs, r.Settings.Thresholds).InRangePct
		bar := strings.Repeat("█", int(tir/2.5))
		band := defs.BandInRange
		if tir < 70 {
			band = defs.BandHigh
		}
		fmt.Fprintf(r.Out, "%-9s %5.1f%% %s\n", wd.String(), tir, r.paint(band, bar))
	}
}

// WeekSparklines renders one sparkline row per local date, oldest first.
func (r *Renderer) WeekSparklines(readings []defs.Reading) {
	if len(readings) == 0 {
		fmt.Fprintln(r.Out, "no data")
		return
	}

	byDate := make(map[string][]defs.Reading)
	for _, rd := range readings {
		date := rd.Time().In(r.Location).Format("Jan 02")
		byDate[date] = append(byDate[date], rd)
	}

	dts := make([]string, 0, len(byDate))
	for date := range byDate {
		dts = append(dts, date)
	}
	sort.Slice(dts, func(i, j int) bool {
		return byDate[dts[i]][0].DateMs < byDate[dts[j]][0].DateMs
	})

	for _, date := range dts {
		day := byDate[date]
		vs := make([]float64, len(day))
		for i, rd := range day {
			vs[i] = float64(rd.SGV)
		}
		// Shared scale across the week so rows compare visually.
		fmt.Fprintf(r.Out, "%s %s\n", date, stats.SparklineScaled(vs, 40, 400))
	}
}

func intValues(readings []defs.Reading) []int {
	vs := make([]int, len(readings))
	for i, rd := range readings {
		vs[i] = rd.SGV
	}
	return vs
}
