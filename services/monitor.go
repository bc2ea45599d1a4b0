package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"willhaben-monitor/config"
	"willhaben-monitor/models"
	"willhaben-monitor/notify"
	"willhaben-monitor/observability"
	"willhaben-monitor/storage"
	"willhaben-monitor/utils"
)

// ListingSource produces the normalized listing batch for one poll cycle.
type ListingSource interface {
	GetListings(ctx context.Context) ([]*models.Listing, error)
}

// Notifier is the outbound notification channel used by the monitor.
type Notifier interface {
	SendIfNew(listings []*models.Listing) ([]*models.Listing, error)
	SendErrorNotification(cause error)
}

// Stats accumulates monitor counters across iterations.
type Stats struct {
	StartTime          time.Time
	Iterations         int
	TotalListingsFound int
	LastSuccessfulRun  time.Time
}

// UptimeMinutes returns how long the monitor has been running.
func (s Stats) UptimeMinutes() float64 {
	return time.Since(s.StartTime).Minutes()
}

// FindRate returns listings found per iteration.
func (s Stats) FindRate() float64 {
	if s.Iterations == 0 {
		return 0
	}
	return float64(s.TotalListingsFound) / float64(s.Iterations)
}

// criticalSignatures are the error shapes worth notifying about; everything
// else is assumed transient and only logged.
var criticalSignatures = []string{
	"blocked",
	"403",
	"429",
	"invalid JSON structure",
	"does not contain expected data",
}

// Monitor drives the poll loop: one strictly sequential cycle per interval,
// with bounded cycle-level retries and cumulative stats.
type Monitor struct {
	logger   *utils.Logger
	source   ListingSource
	tracker  *Tracker
	filter   *Filter
	store    storage.CursorStore
	notifier Notifier

	locations  []string
	interval   time.Duration
	retryDelay time.Duration
	maxRetries int

	stats Stats
}

// NewMonitor wires the poll-cycle pipeline from the configured search.
func NewMonitor(cfg *config.Config, source ListingSource, store storage.CursorStore, notifier Notifier, logger *utils.Logger) *Monitor {
	spec := cfg.Search.FilterSpec()
	return &Monitor{
		logger:     logger,
		source:     source,
		tracker:    NewTracker(spec, logger),
		filter:     NewFilter(spec, cfg.Search.States, cfg.Search.Locations, logger),
		store:      store,
		notifier:   notifier,
		locations:  cfg.Search.Locations,
		interval:   cfg.Search.Scraper.Interval(),
		retryDelay: cfg.Search.Scraper.RetryDelay(),
		maxRetries: cfg.Search.Scraper.MaxRetries,
		stats:      Stats{StartTime: time.Now()},
	}
}

// Snapshot returns a copy of the accumulated counters.
func (m *Monitor) Snapshot() Stats {
	return m.stats
}

// Run loops until ctx is cancelled, sleeping the configured interval between
// iterations. Iteration failures are reported but never stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("[monitor] Starting — interval: %s | maxRetries: %d | locations: %d",
		m.interval, m.maxRetries, len(m.locations))

	for {
		if err := m.RunIteration(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("[monitor] Iteration failed: %v", err)
			m.notifier.SendErrorNotification(fmt.Errorf(
				"🚨 Critical Error: monitor main loop failed\n\nError: %v\n\nStats:\nTotal Iterations: %d\nTotal Listings Found: %d\n\nThe monitor will attempt to continue running.",
				err, m.stats.Iterations, m.stats.TotalListingsFound))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

// RunIteration attempts up to maxRetries cycles. Exhausting the budget sends
// an error notification carrying the cumulative stats and returns the last
// cycle error.
func (m *Monitor) RunIteration(ctx context.Context) error {
	m.stats.Iterations++

	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		m.logger.Debug("[monitor] Iteration %d, attempt %d/%d", m.stats.Iterations, attempt, m.maxRetries)

		lastErr = m.runCycle(ctx)
		if lastErr == nil {
			m.stats.LastSuccessfulRun = time.Now()
			return nil
		}

		observability.CycleErrorsTotal.Inc()
		m.logger.Error("[monitor] Attempt %d/%d failed: %v", attempt, m.maxRetries, lastErr)

		if isCriticalError(lastErr) {
			m.notifier.SendErrorNotification(lastErr)
		}

		if attempt < m.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}

	m.notifier.SendErrorNotification(fmt.Errorf(
		"⚠️ Scraping Failed\n\nError: %v\n\nStats:\nTotal Iterations: %d\nTotal Listings Found: %d\n\nFailed after %d attempts.",
		lastErr, m.stats.Iterations, m.stats.TotalListingsFound, m.maxRetries))
	return lastErr
}

// runCycle executes one full poll cycle: load cursor → fetch/extract/
// normalize → partition → filter → notify → persist the candidate cursor.
// The cursor write happens after the notification attempt so a crash between
// partition and delivery re-surfaces the batch next cycle.
func (m *Monitor) runCycle(ctx context.Context) error {
	observability.PollCyclesTotal.Inc()

	cursor, err := m.store.Load()
	if err != nil {
		return err
	}
	if cursor != nil {
		m.logger.Debug("[monitor] Stored cursor: id=%s price=%.0f", cursor.ID, cursor.Price)
	} else {
		m.logger.Debug("[monitor] No stored cursor — first run")
	}

	listings, err := m.source.GetListings(ctx)
	if err != nil {
		return err
	}
	observability.ListingsSeenTotal.Add(float64(len(listings)))

	newListings, candidate := m.tracker.PartitionNew(listings, cursor)
	if len(newListings) == 0 {
		m.logger.Debug("[monitor] No new listings found")
	}

	matched := m.filter.Apply(newListings)
	if len(m.locations) > 0 {
		matched = m.prefilterLocations(matched)
	}

	if len(matched) > 0 {
		sent, err := m.notifier.SendIfNew(matched)
		if err != nil {
			var vErr *notify.ValidationError
			if errors.As(err, &vErr) {
				// Unnotifiable batch: fatal to this delivery only, the
				// cycle itself goes on.
				m.logger.Error("[monitor] Notification rejected: %v", err)
			} else {
				return err
			}
		} else if len(sent) > 0 {
			m.stats.TotalListingsFound += len(sent)
			observability.ListingsNotifiedTotal.Add(float64(len(sent)))
			m.logger.Info("[monitor] Notified %d new listings", len(sent))
		}
	}

	if candidate != nil {
		if err := m.store.Save(candidate); err != nil {
			return err
		}
		m.logger.Debug("[monitor] Cursor advanced to id=%s", candidate.ID)
	}

	return nil
}

// prefilterLocations is the loose location tier: a listing survives when any
// configured location appears as a substring of its location text. Distinct
// from the filter engine's exact structured matching; both tiers apply.
func (m *Monitor) prefilterLocations(listings []*models.Listing) []*models.Listing {
	result := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if MatchesAnyLocation(l.Location, m.locations) {
			result = append(result, l)
		} else {
			m.logger.Debug("[monitor] Listing %s location %q not in configured areas", l.ID, l.Location)
		}
	}
	return result
}

func isCriticalError(err error) bool {
	msg := err.Error()
	for _, sig := range criticalSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
