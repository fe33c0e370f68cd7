package cgm

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"

	"github.com/gin-gonic/gin"
)

// Server exposes a small local read API over the store and analyzer for
// dashboards. Read-only; ingestion stays on the CLI path.
type Server struct {
	Store    AnalyzerStore
	Analyzer *Analyzer
}

func (s *Server) Run(addr string) error {
	return s.router().Run(addr)
}

func (s *Server) router() *gin.Engine {
	r := gin.Default()

	r.GET("/glucose", func(c *gin.Context) {
		startUnix, err := strconv.ParseInt(c.Query("start"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "expected unix timestamp for start")
			return
		}
		endUnix, err := strconv.ParseInt(c.Query("end"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "expected unix timestamp for end")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
		defer cancel()

		readings, err := s.Store.Readings(ctx, sqlstore.Query{
			StartMs: time.Unix(startUnix, 0).UnixMilli(),
			EndMs:   time.Unix(endUnix, 0).UnixMilli(),
		})
		if err != nil {
			c.String(http.StatusInternalServerError, "something went wrong reading glucose")
			return
		}

		c.JSON(http.StatusOK, readings)
	})

	r.GET("/analysis", func(c *gin.Context) {
		days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
		if err != nil || days <= 0 {
			c.String(http.StatusBadRequest, "expected positive integer for days")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
		defer cancel()

		report, err := s.Analyzer.AnalyzeCGM(ctx, days)
		if errors.Is(err, ErrNoData) {
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.String(http.StatusInternalServerError, "something went wrong analyzing glucose")
			return
		}

		c.JSON(http.StatusOK, report)
	})

	return r
}
