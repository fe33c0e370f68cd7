package defs

import (
	"time"

	"go.uber.org/zap"
)

const DefaultDBFile = "cgm.db"

// Limits on a single entries page request.
const (
	PageCount       = 1000
	TimeoutInterval = 10 * time.Second
)

type Config struct {
	Nightscout NightscoutConfig `yaml:"nightscout"`
	DBPath     string           `yaml:"dbPath"`
	Timezone   string           `yaml:"timezone"`
	Glucose    GlucoseConfig    `yaml:"glucose"`
	Logger     *zap.Logger      `yaml:"-"`
}

type NightscoutConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// GlucoseConfig holds fallback thresholds used when the remote
// settings endpoint does not provide any.
type GlucoseConfig struct {
	UrgentLow  int `yaml:"urgentLow"`
	TargetLow  int `yaml:"targetLow"`
	TargetHigh int `yaml:"targetHigh"`
	UrgentHigh int `yaml:"urgentHigh"`
}

func (gc GlucoseConfig) Thresholds() Thresholds {
	th := Thresholds{
		UrgentLow:  gc.UrgentLow,
		TargetLow:  gc.TargetLow,
		TargetHigh: gc.TargetHigh,
		UrgentHigh: gc.UrgentHigh,
	}
	if th == (Thresholds{}) {
		return DefaultThresholds
	}
	return th
}
