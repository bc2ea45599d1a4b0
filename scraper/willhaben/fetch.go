package willhaben

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"willhaben-monitor/observability"
)

// buildHeaders emulates a standard browser request. Willhaben serves a
// stripped error page to clients that look like bots.
func buildHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "de-AT,de;q=0.9,en-US;q=0.8,en;q=0.7",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"sec-ch-ua":                 `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		"sec-ch-ua-mobile":          "?0",
		"sec-ch-ua-platform":        `"Linux"`,
	}
}

// fetchPage performs the rate-limited, retried GET for a search results page.
// The politeness limiter spaces requests out regardless of retry state; the
// per-request deadline is independent of both.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (string, error) {
	var body string

	err := c.retry.Do(ctx, "fetch-search-page", func() error {
		observability.FetchAttemptsTotal.Inc()

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("willhaben: build request: %w", err)
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		c.logger.Debug("[willhaben] Fetching URL: %s", pageURL)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("willhaben: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("willhaben: HTTP error status: %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("willhaben: read body: %w", err)
		}

		c.logger.Debug("[willhaben] Response length: %d", len(data))

		if !strings.Contains(string(data), sentinelToken) {
			// A transient upstream error page looks identical to a real
			// block, so this still burns retry budget.
			return newParseError("response does not contain expected data", string(data))
		}

		body = string(data)
		return nil
	})

	return body, err
}
