package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"pricing_server/core/port/out"
	"pricing_server/pkg/logger"
)

// sheetLinkRe matches shared Google Sheets links in email bodies.
var sheetLinkRe = regexp.MustCompile(`https://docs\.google\.com/spreadsheets/d/([a-zA-Z0-9_-]+)`)

const maxSheetBytes = 2 << 20

// LinkFetcher downloads shared spreadsheets referenced in emails as CSV text,
// using the referencing account's authorized HTTP client when available.
type LinkFetcher struct {
	clients  map[string]*http.Client
	fallback *http.Client
	log      *logger.Logger
}

var _ out.SpreadsheetLinkFetcher = (*LinkFetcher)(nil)

// NewLinkFetcher creates the fetcher. clients maps account address to that
// account's OAuth HTTP client; unknown accounts fall back to plain HTTP,
// which only works for publicly shared sheets.
func NewLinkFetcher(clients map[string]*http.Client) *LinkFetcher {
	return &LinkFetcher{
		clients:  clients,
		fallback: &http.Client{Timeout: 20 * time.Second},
		log:      logger.WithField("component", "sheet_fetcher"),
	}
}

// FindLinks returns the deduplicated spreadsheet links in the text.
func (f *LinkFetcher) FindLinks(text string) []string {
	matches := sheetLinkRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		links = append(links, m)
	}
	return links
}

// Fetch downloads one sheet via the CSV export endpoint.
func (f *LinkFetcher) Fetch(ctx context.Context, url, account string) (string, error) {
	m := sheetLinkRe.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("not a spreadsheet link: %s", url)
	}
	exportURL := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", m[1])

	client := f.clients[account]
	if client == nil {
		client = f.fallback
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sheet download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sheet download returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
