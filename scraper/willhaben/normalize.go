package willhaben

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"willhaben-monitor/models"
)

// attributeAliases maps each canonical field to the source attribute names
// that may carry it, in priority order. The upstream has renamed attributes
// before; new source names go into this table, not into the parsing logic.
var attributeAliases = map[string][]string{
	"price":    {"PRICE"},
	"rooms":    {"ROOMS_TOTAL", "ROOM_COUNT", "NUMBER_OF_ROOMS"},
	"size":     {"ESTATE_SIZE", "LIVING_AREA"},
	"location": {"LOCATION"},
	"heading":  {"HEADING"},
}

// viennaDistrictRegexp pulls the district number out of a "Wien, NN." prefix.
var viennaDistrictRegexp = regexp.MustCompile(`Wien,\s*(\d+)\.`)

var (
	umlautReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	nonAlnumRegexp = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize maps a raw advert summary onto the canonical listing record and
// synthesizes its detail-page URL. It never fails: absent attributes become
// nil/empty fields, and a location or heading that does not match the expected
// pattern degrades to empty URL segments instead of failing the listing.
func Normalize(raw AdvertSummary) *models.Listing {
	l := &models.Listing{
		ID:         raw.ID,
		Price:      parseNumber(firstAttribute(raw, "price")),
		Rooms:      parseNumber(firstAttribute(raw, "rooms")),
		EstateSize: parseNumber(firstAttribute(raw, "size")),
		Location:   firstAttribute(raw, "location"),
		Heading:    firstAttribute(raw, "heading"),
		ObservedAt: time.Now(),
	}
	l.URL = detailURL(l)
	return l
}

// firstAttribute returns the first present, non-empty value among the aliases
// of a canonical field.
func firstAttribute(raw AdvertSummary, canonical string) string {
	for _, name := range attributeAliases[canonical] {
		for _, attr := range raw.Attributes.Attribute {
			if attr.Name == name && len(attr.Values) > 0 && attr.Values[0] != "" {
				return attr.Values[0]
			}
		}
	}
	return ""
}

func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// detailURL builds the canonical detail-page URL from the listing's location
// and heading. Best-effort: the segments are cosmetic as far as willhaben's
// router is concerned, the trailing ID is what resolves.
func detailURL(l *models.Listing) string {
	districtNum := ""
	if m := viennaDistrictRegexp.FindStringSubmatch(l.Location); m != nil {
		districtNum = padDistrict(m[1])
	}

	districtName := ""
	if parts := strings.Split(l.Location, ","); len(parts) > 2 {
		districtName = strings.ToLower(strings.TrimSpace(parts[2]))
	}

	districtPart := "wien-" + districtNum + "90-" + districtName
	titlePart := sanitizeForURL(l.Heading)

	return "https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/" +
		districtPart + "/" + titlePart + "-" + l.ID + "/"
}

// sanitizeForURL lowercases the text, expands German umlauts, collapses
// everything else into single hyphens, and trims the edges.
func sanitizeForURL(text string) string {
	s := umlautReplacer.Replace(strings.ToLower(text))
	s = nonAlnumRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// padDistrict zero-pads a district number to two digits.
func padDistrict(n string) string {
	if len(n) == 1 {
		return "0" + n
	}
	return n
}
