package willhaben

// Source-shaped structs for the __NEXT_DATA__ payload. Only the path down to
// the advert summaries is decoded; everything else in the blob is ignored.
// The intermediate levels are pointers so a structurally wrong payload can be
// told apart from an empty result set.

type nextData struct {
	Props *nextProps `json:"props"`
}

type nextProps struct {
	PageProps *pageProps `json:"pageProps"`
}

type pageProps struct {
	SearchResult *searchResult `json:"searchResult"`
}

type searchResult struct {
	AdvertSummaryList *advertSummaryList `json:"advertSummaryList"`
}

type advertSummaryList struct {
	AdvertSummary []AdvertSummary `json:"advertSummary"`
}

// AdvertSummary is the raw, source-shaped listing record. It is transient:
// produced by the extractor, consumed only by the normalizer.
type AdvertSummary struct {
	ID         string        `json:"id"`
	Attributes attributeList `json:"attributes"`
}

type attributeList struct {
	Attribute []Attribute `json:"attribute"`
}

// Attribute is one name/values pair from the source's attribute list.
type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// advertSummaries walks the expected nested path and reports whether it was
// fully present. A present-but-empty summary array is valid.
func (d *nextData) advertSummaries() ([]AdvertSummary, bool) {
	if d.Props == nil || d.Props.PageProps == nil || d.Props.PageProps.SearchResult == nil {
		return nil, false
	}
	list := d.Props.PageProps.SearchResult.AdvertSummaryList
	if list == nil || list.AdvertSummary == nil {
		return nil, false
	}
	return list.AdvertSummary, true
}
