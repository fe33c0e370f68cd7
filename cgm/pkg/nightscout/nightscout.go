// Package nightscout is a thin client for the remote Nightscout API:
// paginated entry fetches and the settings blob. No retry or caching
// policy lives here.
package nightscout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"

	"go.uber.org/zap"
)

const (
	entriesEndpoint = "/api/v1/entries.json"
	statusEndpoint  = "/api/v1/status.json"

	// TypeSGV marks an entry as a sensor glucose value. Anything else
	// (calibrations, device status) is not a Reading.
	TypeSGV = "sgv"
)

// Source is one page of raw entries, newest first, all strictly older
// than beforeMs.
type Source interface {
	Entries(ctx context.Context, beforeMs int64, count int) ([]Entry, error)
}

// SettingsSource resolves the remote display preferences.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	token   string
}

// Entry is a raw record from the entries endpoint. Only the fields the
// engine consumes are mapped; uploaders attach plenty more.
type Entry struct {
	ID         string  `json:"_id"`
	Type       string  `json:"type"`
	SGV        int     `json:"sgv"`
	Date       int64   `json:"date"`
	DateString string  `json:"dateString"`
	Trend      *int    `json:"trend"`
	Direction  *string `json:"direction"`
	Device     *string `json:"device"`
}

// Reading maps an entry onto a stored Reading. Optional metadata stays
// optional.
func (e Entry) Reading() defs.Reading {
	return defs.Reading{
		ID:         e.ID,
		SGV:        e.SGV,
		DateMs:     e.Date,
		DateString: e.DateString,
		Trend:      e.Trend,
		Direction:  e.Direction,
		Device:     e.Device,
	}
}

// Settings is the settings portion of the status endpoint.
type Settings struct {
	Units      string              `json:"units"`
	Thresholds *SettingsThresholds `json:"thresholds"`
}

type SettingsThresholds struct {
	BGLow          int `json:"bgLow"`
	BGTargetBottom int `json:"bgTargetBottom"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGHigh         int `json:"bgHigh"`
}

// Resolve applies the defaulting rules: a units string containing "mmol"
// selects mmol/L, anything else mg/dL; missing thresholds fall back.
func (s Settings) Resolve(fallback defs.Thresholds) defs.GlucoseSettings {
	gs := defs.GlucoseSettings{
		UseMmol:    strings.Contains(strings.ToLower(s.Units), "mmol"),
		Thresholds: fallback,
	}
	if t := s.Thresholds; t != nil {
		gs.Thresholds = defs.Thresholds{
			UrgentLow:  t.BGLow,
			TargetLow:  t.BGTargetBottom,
			TargetHigh: t.BGTargetTop,
			UrgentHigh: t.BGHigh,
		}
	}
	return gs
}

func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		client:  &http.Client{},
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) Entries(ctx context.Context, beforeMs int64, count int) ([]Entry, error) {
	params := url.Values{
		"count":           {strconv.Itoa(count)},
		"find[date][$lt]": {strconv.FormatInt(beforeMs, 10)},
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	c.logger.Debug("fetching entries page",
		zap.Int64("before", beforeMs),
		zap.Int("count", count),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+entriesEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch entries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entries request failed: %s", resp.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("unable to decode entries: %w", err)
	}

	c.logger.Debug("received entries page", zap.Int("entries", len(entries)))
	return entries, nil
}

func (c *Client) Settings(ctx context.Context) (Settings, error) {
	endpoint := c.baseURL + statusEndpoint
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Settings{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("unable to fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Settings{}, fmt.Errorf("status request failed: %s", resp.Status)
	}

	var status struct {
		Settings Settings `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Settings{}, fmt.Errorf("unable to decode status: %w", err)
	}

	c.logger.Debug("received settings",
		zap.String("units", status.Settings.Units),
		zap.Bool("hasThresholds", status.Settings.Thresholds != nil),
	)
	return status.Settings, nil
}
