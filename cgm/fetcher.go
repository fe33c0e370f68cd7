package cgm

import (
	"context"
	"fmt"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/nightscout"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"

	"go.uber.org/zap"
)

type FetcherStore interface {
	sqlstore.ReadingStore
}

// Fetcher keeps the local store populated from the remote source.
type Fetcher struct {
	Source nightscout.Source
	Store  FetcherStore

	Logger *zap.Logger

	// Now is the injected clock; nil means time.Now.
	Now func() time.Time
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// EnsureData is the gate every analytic call passes first: a non-empty
// store is taken as-is, an empty one triggers a fetch. Reports whether
// readings are available afterwards.
func (f *Fetcher) EnsureData(ctx context.Context, days int) bool {
	count, err := f.Store.RowCount(ctx)
	if err != nil {
		f.Logger.Debug("unable to count stored readings", zap.Error(err))
		return false
	}
	if count > 0 {
		return true
	}

	if _, err := f.FetchAndStore(ctx, days); err != nil {
		f.Logger.Debug("unable to bootstrap store", zap.Error(err))
		return false
	}
	return true
}

// FetchAndStore pulls all entries covering the trailing days*24 hours,
// keeps the sensor values, and merges them into the store. The batch is
// written in one transaction, so a failure never leaves partial rows.
func (f *Fetcher) FetchAndStore(ctx context.Context, days int) (defs.FetchResult, error) {
	cutoffMs := f.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	beforeMs := f.now().UnixMilli()

	var readings []defs.Reading
	for {
		entries, err := f.Source.Entries(ctx, beforeMs, defs.PageCount)
		if err != nil {
			return defs.FetchResult{}, fmt.Errorf("unable to fetch entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		done := false
		for _, e := range entries {
			if e.Date < cutoffMs {
				done = true
				break
			}
			if e.Type != nightscout.TypeSGV {
				continue
			}
			readings = append(readings, e.Reading())
		}
		if done {
			break
		}

		// Pages are newest-first; continue from the oldest seen.
		oldest := entries[len(entries)-1].Date
		if oldest >= beforeMs {
			break
		}
		beforeMs = oldest
	}

	inserted, err := f.Store.InsertBatch(ctx, readings)
	if err != nil {
		return defs.FetchResult{}, fmt.Errorf("unable to store readings: %w", err)
	}

	total, err := f.Store.RowCount(ctx)
	if err != nil {
		return defs.FetchResult{}, fmt.Errorf("unable to count readings: %w", err)
	}

	f.Logger.Info("merged remote readings",
		zap.Int("fetched", len(readings)),
		zap.Int("new", inserted),
		zap.Int("total", total),
	)
	return defs.FetchResult{NewReadings: inserted, TotalReadings: total}, nil
}
