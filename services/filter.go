package services

import (
	"regexp"
	"strings"

	"willhaben-monitor/models"
	"willhaben-monitor/utils"
)

// locationRegexp parses the structured "<State>, NN. Bezirk, <Name>" location
// form. This is the exact second-tier matcher; the loose first tier is
// MatchesAnyLocation.
var locationRegexp = regexp.MustCompile(`(?i)([^,]+),\s*(\d+)\.\s*Bezirk,\s*(.+)`)

// districtTriple is the structured form of a location, lowercased and with
// the district number zero-padded to two digits.
type districtTriple struct {
	state  string
	number string
	name   string
}

// Filter applies the hard-veto filter stages to a listing batch: missing
// price/rooms, price bounds, room bounds, then the exact district allow-list.
type Filter struct {
	logger  *utils.Logger
	spec    models.FilterSpec
	states  map[string]struct{}
	allowed []districtTriple
}

// NewFilter builds a Filter from the configured bounds, active states, and
// allowed locations. Config locations that do not match the structured
// pattern are dropped.
func NewFilter(spec models.FilterSpec, states, locations []string, logger *utils.Logger) *Filter {
	f := &Filter{
		logger: logger,
		spec:   spec,
		states: make(map[string]struct{}, len(states)),
	}
	for _, s := range states {
		f.states[normalizeState(strings.ToLower(s))] = struct{}{}
	}
	for _, loc := range locations {
		if triple, ok := parseLocation(loc); ok {
			f.allowed = append(f.allowed, triple)
		} else {
			logger.Warn("[filter] Ignoring unparsable allowed location %q", loc)
		}
	}
	return f
}

// Apply filters the batch. Each stage is a hard veto; surviving listings are
// returned in input order. Apply is idempotent.
func (f *Filter) Apply(listings []*models.Listing) []*models.Listing {
	result := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if f.keep(l) {
			result = append(result, l)
		}
	}
	f.logger.Debug("[filter] %d → %d listings after exact filtering", len(listings), len(result))
	return result
}

func (f *Filter) keep(l *models.Listing) bool {
	if l.Price == nil || l.Rooms == nil {
		f.logger.Debug("[filter] Listing %s dropped: missing price or rooms", l.ID)
		return false
	}
	if !f.spec.PriceInRange(l.Price) {
		f.logger.Debug("[filter] Listing %s dropped: price %.0f out of range", l.ID, *l.Price)
		return false
	}
	if !f.spec.RoomsInRange(l.Rooms) {
		f.logger.Debug("[filter] Listing %s dropped: rooms %.1f out of range", l.ID, *l.Rooms)
		return false
	}

	triple, ok := parseLocation(l.Location)
	if !ok {
		// Cannot determine the district; kept on purpose rather than
		// discarded on a parse failure.
		f.logger.Debug("[filter] Listing %s location %q not parsable, keeping", l.ID, l.Location)
		return true
	}

	if _, active := f.states[triple.state]; !active {
		f.logger.Debug("[filter] Listing %s dropped: state %q not active", l.ID, triple.state)
		return false
	}
	// An empty allow-list means no district restriction at all.
	if len(f.allowed) == 0 {
		return true
	}
	for _, allowed := range f.allowed {
		if allowed == triple {
			return true
		}
	}
	f.logger.Debug("[filter] Listing %s dropped: district %s %s not allowed", l.ID, triple.number, triple.name)
	return false
}

// parseLocation applies the exact structured matcher to a location string.
func parseLocation(location string) (districtTriple, bool) {
	m := locationRegexp.FindStringSubmatch(location)
	if m == nil {
		return districtTriple{}, false
	}
	return districtTriple{
		state:  normalizeState(strings.ToLower(strings.TrimSpace(m[1]))),
		number: padDistrictNumber(m[2]),
		name:   strings.ToLower(strings.TrimSpace(m[3])),
	}, true
}

// normalizeState treats vienna as an alias for wien, on both the config and
// the listing side.
func normalizeState(state string) string {
	if state == "vienna" {
		return "wien"
	}
	return state
}

func padDistrictNumber(n string) string {
	if len(n) == 1 {
		return "0" + n
	}
	return n
}

// MatchesAnyLocation is the coarse first-tier matcher: case-insensitive
// substring containment of any configured location in the listing's location
// text. Call sites apply it before the exact stage; the two strategies are
// deliberately distinct.
func MatchesAnyLocation(listingLocation string, locations []string) bool {
	loc := strings.ToLower(listingLocation)
	for _, l := range locations {
		if strings.Contains(loc, strings.ToLower(l)) {
			return true
		}
	}
	return false
}
