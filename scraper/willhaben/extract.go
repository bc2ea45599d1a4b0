package willhaben

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// sentinelToken must appear in any usable response body; its absence means
	// an error page or a block, not search results.
	sentinelToken = "__NEXT_DATA__"

	// nextDataSelector identifies the script block willhaben embeds its search
	// results into.
	nextDataSelector = `script#__NEXT_DATA__`

	previewLimit = 300
)

// ParseError reports a content-shape violation in a fetched results page. It
// carries a bounded preview of the offending content for diagnosis without
// flooding the logs.
type ParseError struct {
	Reason  string
	Preview string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("willhaben: %s (preview: %q)", e.Reason, e.Preview)
}

func newParseError(reason, content string) *ParseError {
	return &ParseError{Reason: reason, Preview: preview(content)}
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if len(content) > previewLimit {
		return content[:previewLimit] + "..."
	}
	return content
}

// ExtractListings locates the embedded __NEXT_DATA__ JSON payload in a search
// results page and returns the raw advert summaries.
func ExtractListings(body string) ([]AdvertSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, newParseError(fmt.Sprintf("parse HTML: %v", err), body)
	}

	sel := doc.Find(nextDataSelector)
	if sel.Length() == 0 {
		return nil, newParseError("response does not contain expected data (no __NEXT_DATA__ script)", body)
	}

	payload := strings.TrimSpace(sel.First().Text())
	if payload == "" {
		return nil, newParseError("empty __NEXT_DATA__ payload", body)
	}

	var data nextData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		// An unterminated script block swallows the rest of the document and
		// surfaces here as malformed JSON.
		return nil, newParseError(fmt.Sprintf("decode __NEXT_DATA__: %v", err), payload)
	}

	summaries, ok := data.advertSummaries()
	if !ok {
		return nil, newParseError("invalid JSON structure (advert summary path missing)", payload)
	}
	return summaries, nil
}
