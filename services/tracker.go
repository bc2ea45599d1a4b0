package services

import (
	"sort"
	"strconv"

	"willhaben-monitor/models"
	"willhaben-monitor/utils"
)

// idResetThreshold is the numeric-ID gap beyond which the source is assumed
// to have reset its ID space; newness then falls back to timestamps.
const idResetThreshold = 1_000_000

// Tracker decides which listings in a batch postdate the stored cursor and
// computes the cursor update candidate. The price spec gates the candidate so
// an out-of-range listing can never suppress future in-range ones.
type Tracker struct {
	logger *utils.Logger
	spec   models.FilterSpec
}

// NewTracker creates a Tracker for the given price bounds.
func NewTracker(spec models.FilterSpec, logger *utils.Logger) *Tracker {
	return &Tracker{logger: logger, spec: spec}
}

// PartitionNew sorts the batch newest-first and splits it into the listings
// newer than the stored cursor plus the candidate cursor update. The returned
// candidate is nil or newer-or-equal to every price-passing listing in the
// batch; nil means the store should not be touched this cycle.
func (t *Tracker) PartitionNew(batch []*models.Listing, cursor *models.Cursor) ([]*models.Listing, *models.Cursor) {
	sorted := make([]*models.Listing, len(batch))
	copy(sorted, batch)
	sort.Slice(sorted, func(i, j int) bool {
		return numericID(sorted[i].ID) > numericID(sorted[j].ID)
	})

	var newListings []*models.Listing
	var candidate *models.Cursor

	for _, l := range sorted {
		if !t.spec.PriceInRange(l.Price) {
			t.logger.Debug("[tracker] Listing %s outside price range, ignored", l.ID)
			continue
		}

		if candidate == nil || isNewer(l, candidate) {
			candidate = cursorFor(l)
		}
		if cursor == nil || isNewer(l, cursor) {
			newListings = append(newListings, l)
		}
	}

	return newListings, candidate
}

// isNewer reports whether the listing postdates the cursor. A numeric-ID gap
// above idResetThreshold means the upstream ID space reset, in which case the
// observation timestamps decide; so do IDs that fail to parse at all.
func isNewer(l *models.Listing, c *models.Cursor) bool {
	if c == nil {
		return true
	}

	current, errCur := strconv.ParseInt(l.ID, 10, 64)
	last, errLast := strconv.ParseInt(c.ID, 10, 64)
	if errCur != nil || errLast != nil {
		return l.ObservedAt.After(c.ObservedAt)
	}

	if abs(current-last) > idResetThreshold {
		return l.ObservedAt.After(c.ObservedAt)
	}
	return current > last
}

func cursorFor(l *models.Listing) *models.Cursor {
	c := &models.Cursor{ID: l.ID, ObservedAt: l.ObservedAt}
	if l.Price != nil {
		c.Price = *l.Price
	}
	return c
}

// numericID parses an ID for sort order; unparsable IDs sort last.
func numericID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
