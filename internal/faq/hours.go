package faq

import (
	"time"

	"eino_dealer_bot/internal/config"
)

// ConfigHoursProvider serves StoreHours from the bot configuration in the
// store's timezone
type ConfigHoursProvider struct {
	hours config.HoursConfig
	loc   *time.Location
}

// NewConfigHoursProvider builds a provider over cfg
func NewConfigHoursProvider(cfg *config.BotConfig) (*ConfigHoursProvider, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &ConfigHoursProvider{hours: cfg.Hours, loc: loc}, nil
}

// StoreHours returns the weekly schedule and the rules active at now
func (p *ConfigHoursProvider) StoreHours(now time.Time) StoreHours {
	local := now.In(p.loc)
	schedule := make(map[time.Weekday]config.DayHours, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		schedule[d] = p.hours.DayHoursFor(d)
	}
	return StoreHours{
		Now:          local,
		Schedule:     schedule,
		SpecialRules: p.hours.ActiveSpecialRules(local),
	}
}
