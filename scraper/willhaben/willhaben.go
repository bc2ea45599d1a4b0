package willhaben

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"willhaben-monitor/config"
	"willhaben-monitor/models"
	"willhaben-monitor/utils"
)

const (
	defaultBaseURL = "https://www.willhaben.at/iad/immobilien/"

	// requestTimeout is the hard per-request deadline, independent of the
	// retry and politeness timers.
	requestTimeout = 20 * time.Second
)

// Categories maps the human-readable search categories to their URL slugs.
var Categories = map[string]string{
	"apartment rent": "mietwohnungen",
	"apartment buy":  "eigentumswohnung",
	"house rent":     "haus-mieten",
	"house buy":      "haus-kaufen",
}

// StateSlugs maps config state names to their willhaben URL slugs. Vienna is
// addressable under both its English and German names.
var StateSlugs = map[string]string{
	"burgenland":    "burgenland",
	"carinthia":     "kaernten",
	"lower austria": "niederoesterreich",
	"upper austria": "oberoesterreich",
	"salzburg":      "salzburg",
	"styria":        "steiermark",
	"tyrol":         "tirol",
	"vorarlberg":    "vorarlberg",
	"vienna":        "wien",
	"wien":          "wien",
}

// Client fetches willhaben search results pages and turns them into canonical
// listings. One Client serves one configured search.
type Client struct {
	logger  *utils.Logger
	http    *http.Client
	limiter *rate.Limiter
	retry   *utils.RetryConfig
	headers map[string]string

	baseURL        string
	category       string
	state          string
	rows           int
	requestTimeout time.Duration
}

// NewClient validates the configured search and returns a ready Client.
func NewClient(cfg *config.Config, logger *utils.Logger) (*Client, error) {
	slug, err := categorySlug(cfg.Search.Category)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger:  logger,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Every(cfg.Search.Scraper.Politeness()), 1),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.Search.Scraper.MaxRetries,
			BaseDelay:   cfg.Search.Scraper.RetryDelay(),
			Logger:      logger,
		},
		headers:        buildHeaders(cfg.Search.Scraper.UserAgent),
		baseURL:        defaultBaseURL,
		category:       slug,
		state:          stateSlug(cfg.Search.States),
		rows:           cfg.Search.Rows,
		requestTimeout: requestTimeout,
	}, nil
}

// GetListings runs one acquisition pass: fetch the search page, extract the
// embedded payload, and normalize every advert summary.
func (c *Client) GetListings(ctx context.Context) ([]*models.Listing, error) {
	body, err := c.fetchPage(ctx, c.SearchURL())
	if err != nil {
		return nil, err
	}

	summaries, err := ExtractListings(body)
	if err != nil {
		return nil, err
	}

	listings := make([]*models.Listing, 0, len(summaries))
	for _, raw := range summaries {
		listings = append(listings, Normalize(raw))
	}

	c.logger.Debug("[willhaben] Extracted %d listings", len(listings))
	return listings, nil
}

// SearchURL builds the search results URL with a cache-busting timestamp.
func (c *Client) SearchURL() string {
	params := url.Values{}
	params.Set("nocache", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("page", "1")
	params.Set("rows", strconv.Itoa(c.rows))

	return c.baseURL + c.category + "/" + c.state + "/?" + params.Encode()
}

// categorySlug accepts either a human-readable category name or a raw slug.
func categorySlug(category string) (string, error) {
	if slug, ok := Categories[strings.ToLower(category)]; ok {
		return slug, nil
	}
	for _, slug := range Categories {
		if slug == category {
			return category, nil
		}
	}
	return "", fmt.Errorf("willhaben: invalid category %q", category)
}

// stateSlug resolves the first configured state; unknown names fall back to
// Vienna.
func stateSlug(states []string) string {
	if len(states) == 0 {
		return "wien"
	}
	if slug, ok := StateSlugs[strings.ToLower(states[0])]; ok {
		return slug
	}
	return "wien"
}
