package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm"
	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/dates"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/display"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"

	"github.com/spf13/cobra"
)

var (
	flagDays      int
	flagHours     int
	flagLimit     int
	flagDay       string
	flagDate      string
	flagHourStart int
	flagHourEnd   int
	flagNoColor   bool
	flagAddr      string
)

func init() {
	for _, c := range []*cobra.Command{fetchCmd, analyzeCmd, queryCmd, patternsCmd, worstCmd, heatmapCmd, dayChartCmd, weekCmd} {
		c.Flags().IntVar(&flagDays, "days", 7, "lookback window in days")
	}
	for _, c := range []*cobra.Command{queryCmd, dayCmd, worstCmd, sparkCmd} {
		c.Flags().IntVar(&flagHourStart, "from", -1, "first local hour of day (0-23)")
		c.Flags().IntVar(&flagHourEnd, "to", -1, "last local hour of day (0-23, inclusive)")
	}
	queryCmd.Flags().StringVar(&flagDay, "day", "", "weekday name, full or 3-letter")
	worstCmd.Flags().IntVar(&flagLimit, "limit", 10, "maximum days to report")
	for _, c := range []*cobra.Command{dayCmd, sparkCmd, heatmapCmd, dayChartCmd, weekCmd} {
		c.Flags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	}
	sparkCmd.Flags().IntVar(&flagHours, "hours", 24, "trailing hours to chart")
	sparkCmd.Flags().StringVar(&flagDate, "date", "", "chart one calendar day instead")
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":4242", "listen address")

	rootCmd.AddCommand(fetchCmd, analyzeCmd, queryCmd, patternsCmd, dayCmd, worstCmd, sparkCmd, heatmapCmd, dayChartCmd, weekCmd, serveCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull readings from Nightscout into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.fetcher.FetchAndStore(cmd.Context(), flagDays)
		if err != nil {
			return err
		}
		fmt.Printf("New readings: %d\nTotal readings: %d\n", res.NewReadings, res.TotalReadings)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Full report over the trailing window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.analyzer.AnalyzeCGM(cmd.Context(), flagDays)
		if err != nil {
			return err
		}

		s := report.Statistics
		fmt.Printf("%s to %s  (%d readings)\n",
			report.DateRange.Start.Format("Jan 02"), report.DateRange.End.Format("Jan 02"), report.Readings)
		fmt.Printf("Avg: %.1f %s  Median: %.1f  Range: %.1f-%.1f  SD: %.1f\n",
			s.Mean, s.Unit, s.Median, s.Min, s.Max, s.Std)
		printTIR(report.TimeInRange)
		fmt.Printf("GMI (est. A1c): %.1f%%\n", report.GMIEstimatedA1C)
		fmt.Printf("CV: %.1f%% (%s)\n", report.CVVariability, report.CVStatus)
		fmt.Println("Hourly averages:")
		for hour := 0; hour < 24; hour++ {
			if avg, ok := report.HourlyAverages[hour]; ok {
				fmt.Printf("  %02d:00  %.1f\n", hour, avg)
			}
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Statistics over a weekday and/or hour-range slice",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		var weekday *time.Weekday
		if flagDay != "" {
			wd, err := dates.ParseWeekday(flagDay)
			if err != nil {
				return err
			}
			weekday = &wd
		}

		pq, err := a.analyzer.QueryPatterns(cmd.Context(), flagDays, weekday, hourPtr(flagHourStart), hourPtr(flagHourEnd))
		if err != nil {
			return err
		}

		fmt.Printf("Filter: %s  (%d readings)\n", pq.Filter, pq.Readings)
		if pq.Readings == 0 {
			return nil
		}
		s := pq.Statistics
		fmt.Printf("Avg: %.1f %s  Median: %.1f  Range: %.1f-%.1f  SD: %.1f\n",
			s.Mean, s.Unit, s.Median, s.Min, s.Max, s.Std)
		printTIR(pq.TimeInRange)
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Best and worst hours and weekdays by time in range",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		in, err := a.analyzer.FindPatterns(cmd.Context(), flagDays)
		if err != nil {
			return err
		}

		fmt.Printf("Best time of day:  %02d:00 (%.1f%% in range)\n", in.BestTimeOfDay.Hour, in.BestTimeOfDay.TimeInRange)
		fmt.Printf("Worst time of day: %02d:00 (%.1f%% in range)\n", in.WorstTimeOfDay.Hour, in.WorstTimeOfDay.TimeInRange)
		fmt.Printf("Best day:  %s (%.1f%% in range)\n", in.BestDay.Day, in.BestDay.TimeInRange)
		fmt.Printf("Worst day: %s (%.1f%% in range)\n", in.WorstDay.Day, in.WorstDay.TimeInRange)
		if len(in.ProblemTimes) == 0 {
			fmt.Println("No problem times.")
			return nil
		}
		fmt.Println("Problem times:")
		for _, pt := range in.ProblemTimes {
			fmt.Printf("  %02d:00  %.1f%% in range\n", pt.Hour, pt.TimeInRange)
		}
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "One local calendar day of readings",
	Long:  `Accepts "today", "yesterday", YYYY-MM-DD, "Jan 2", "January 2", or MM/DD.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		dateArg := "today"
		if len(args) == 1 {
			dateArg = args[0]
		}

		view, err := a.analyzer.ViewDay(cmd.Context(), dateArg, hourPtr(flagHourStart), hourPtr(flagHourEnd))
		if err != nil {
			return err
		}

		fmt.Printf("%s  (%s)\n", view.Date, view.Filter)
		if len(view.Readings) == 0 {
			fmt.Println("no data")
			return nil
		}
		for _, r := range view.Readings {
			fmt.Printf("  %s  %6.1f  %s\n", r.Time, r.Value, r.Status)
		}
		st := view.Statistics
		fmt.Printf("Avg: %.1f  Range: %.1f-%.1f  In range: %.1f%%\n", st.Average, st.Min, st.Max, st.TimeInRangePct)
		fmt.Printf("Peak at %s, trough at %s\n", st.PeakTime, st.TroughTime)
		return nil
	},
}

var worstCmd = &cobra.Command{
	Use:   "worst",
	Short: "Days ranked by glucose peak",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		wd, err := a.analyzer.FindWorstDays(cmd.Context(), flagDays, flagLimit, hourPtr(flagHourStart), hourPtr(flagHourEnd))
		if err != nil {
			return err
		}

		fmt.Printf("Filter: %s\n", wd.Filter)
		fmt.Printf("%-12s %5s %7s %8s %9s %6s %5s\n", "date", "peak", "trough", "average", "in-range", "highs", "lows")
		for _, d := range wd.Days {
			fmt.Printf("%-12s %5d %7d %8.1f %8.1f%% %6d %5d\n",
				d.Date, d.Peak, d.Trough, d.Average, d.TimeInRangePct, d.HighReadings, d.LowReadings)
		}
		return nil
	},
}

var sparkCmd = &cobra.Command{
	Use:   "spark",
	Short: "Sparkline of recent readings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if !a.fetcher.EnsureData(ctx, 1) {
			fmt.Println("no data")
			return nil
		}

		now := time.Now().In(a.location)
		var start, end time.Time
		var title string
		if flagDate != "" {
			day, err := dates.Parse(flagDate, now)
			if err != nil {
				return err
			}
			start, end = day, day.AddDate(0, 0, 1)
			title = fmt.Sprintf("Sparkline %s", day.Format("Jan 02"))
		} else {
			start, end = now.Add(-time.Duration(flagHours)*time.Hour), now
			title = fmt.Sprintf("Sparkline last %dh", flagHours)
		}
		if hs, he := hourPtr(flagHourStart), hourPtr(flagHourEnd); hs != nil && he != nil {
			title += fmt.Sprintf(" %02d:00-%02d:00", *hs, *he)
		}

		readings, err := a.store.Readings(ctx, sqlstore.Query{
			StartMs:   start.UnixMilli(),
			EndMs:     end.UnixMilli(),
			HourStart: hourPtr(flagHourStart),
			HourEnd:   hourPtr(flagHourEnd),
		})
		if err != nil {
			return err
		}

		gs := defs.GlucoseSettings{Thresholds: a.cfg.Glucose.Thresholds()}
		if remote, err := a.client.Settings(ctx); err == nil {
			gs = remote.Resolve(gs.Thresholds)
		}

		r := &display.Renderer{Out: os.Stdout, Location: a.location, Settings: gs, NoColor: flagNoColor}
		r.Sparkline(title, readings)
		return nil
	},
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Hour-by-day glucose heatmap",
	RunE:  func(cmd *cobra.Command, args []string) error { return renderChart(cmd, "heatmap") },
}

var dayChartCmd = &cobra.Command{
	Use:   "daychart",
	Short: "Time-in-range bars per weekday",
	RunE:  func(cmd *cobra.Command, args []string) error { return renderChart(cmd, "daychart") },
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "One sparkline per day",
	RunE:  func(cmd *cobra.Command, args []string) error { return renderChart(cmd, "week") },
}

func renderChart(cmd *cobra.Command, kind string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if !a.fetcher.EnsureData(ctx, flagDays) {
		fmt.Println("no data")
		return nil
	}

	now := time.Now().In(a.location)
	readings, err := a.store.Readings(ctx, sqlstore.Query{
		StartMs: now.AddDate(0, 0, -flagDays).UnixMilli(),
		EndMs:   now.UnixMilli(),
	})
	if err != nil {
		return err
	}

	gs := defs.GlucoseSettings{Thresholds: a.cfg.Glucose.Thresholds()}
	if remote, err := a.client.Settings(ctx); err == nil {
		gs = remote.Resolve(gs.Thresholds)
	}

	r := &display.Renderer{Out: os.Stdout, Location: a.location, Settings: gs, NoColor: flagNoColor}
	switch kind {
	case "heatmap":
		r.Heatmap(readings)
	case "daychart":
		r.DayChart(readings)
	case "week":
		r.WeekSparklines(readings)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		srv := &cgm.Server{Store: a.store, Analyzer: a.analyzer}
		return srv.Run(flagAddr)
	},
}

func printTIR(tir defs.RangeBreakdown) {
	fmt.Printf("In range: %.1f%%  (very low %.1f%%, low %.1f%%, high %.1f%%, very high %.1f%%)\n",
		tir.InRangePct, tir.VeryLowPct, tir.LowPct, tir.HighPct, tir.VeryHighPct)
}
