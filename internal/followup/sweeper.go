// Package followup re-engages customers whose conversation went quiet.
package followup

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/logger"
)

// Report summarizes one sweep
type Report struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweeper scans the stored summaries and sends one follow-up per idle
// period, one customer at a time
type Sweeper struct {
	store     conversation.ContextStore
	summaries *conversation.SummaryService
	bus       services.MessageBus
	counters  *metrics.Counters

	messages      []string
	storeName     string
	handoffWindow time.Duration
	idleAfter     time.Duration
	delay         time.Duration

	now  func() time.Time
	pick func(n int) int
}

// Option customizes a Sweeper
type Option func(*Sweeper)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithPicker replaces the random choice of follow-up text
func WithPicker(pick func(n int) int) Option {
	return func(s *Sweeper) { s.pick = pick }
}

// NewSweeper builds a sweeper. idleAfter is how long a conversation must be
// quiet, delay is the pause between two sends.
func NewSweeper(store conversation.ContextStore, bus services.MessageBus, cfg *config.BotConfig, counters *metrics.Counters, idleAfter, delay time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:         store,
		summaries:     conversation.NewSummaryService(store),
		bus:           bus,
		counters:      counters,
		messages:      cfg.Responses.FollowUps,
		storeName:     cfg.Store.Name,
		handoffWindow: cfg.Policy.HandoffWindow(),
		idleAfter:     idleAfter,
		delay:         delay,
		now:           time.Now,
		pick:          rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep. It stops early only when ctx is done.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	var report Report
	if len(s.messages) == 0 {
		return report, fmt.Errorf("no follow-up messages configured")
	}

	now := s.now()
	var due []string
	err := s.store.Scan(ctx, func(userID string) error {
		report.Scanned++
		// a scan must not keep idle summaries alive
		summary := s.summaries.Peek(ctx, userID)
		if s.eligible(summary, now) {
			due = append(due, userID)
		} else {
			report.Skipped++
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to scan summaries: %w", err)
	}
	slices.Sort(due)

	for i, userID := range due {
		if i > 0 {
			if err := sleep(ctx, s.delay); err != nil {
				return report, err
			}
		}
		if s.send(ctx, userID, now) {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	logger.Info().
		Int("scanned", report.Scanned).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Follow-up sweep completed")
	return report, nil
}

// eligible tells whether the customer went quiet and was not followed up
// since their last turn
func (s *Sweeper) eligible(summary *pkg.TurnSummary, now time.Time) bool {
	switch {
	case summary.OptedOut:
		return false
	case summary.UpdatedAt.IsZero():
		return false
	case now.Sub(summary.UpdatedAt) < s.idleAfter:
		return false
	case summary.HandoffActive(now, s.handoffWindow):
		return false
	}
	return summary.LastFollowUpAt.Before(summary.UpdatedAt)
}

func (s *Sweeper) send(ctx context.Context, userID string, now time.Time) bool {
	text := strings.ReplaceAll(s.messages[s.pick(len(s.messages))], "{store}", s.storeName)
	text = policy.Normalize(text)

	if err := s.bus.Send(ctx, userID, text); err != nil {
		s.counters.DeliveryFailures.Add(1)
		logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to send follow-up")
		return false
	}
	s.counters.FollowUpsSent.Add(1)

	// reload so a turn that landed during the sweep is not overwritten
	summary := s.summaries.Peek(ctx, userID)
	summary.LastFollowUpAt = now
	s.summaries.Put(ctx, userID, summary)
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
