package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"boxradar/internal/domain/entity"
	"boxradar/pkg/contextx"
	"boxradar/pkg/retryx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const leboncoinSearchURL = "https://www.leboncoin.fr/recherche?category=8&owner_type=all&real_estate_type=6,7"

//nolint:gochecknoglobals
var (
	cardRe    = regexp.MustCompile(`<a[^>]+data-test-id="ad"[^>]+href="(/ad/[^"]+)"[^>]*>(.*?)</a>`)
	priceRe   = regexp.MustCompile(`([\d\s  ]+)\s*€`)
	surfaceRe = regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*m²`)
	tagRe     = regexp.MustCompile(`>([^<>]+)<`)
)

// LeboncoinSource pulls garage listings from the public search page. Listing
// extraction is deliberately shallow: when the page structure changes the
// source returns empty instead of guessing.
type LeboncoinSource struct {
	httpClient *http.Client
	searchURL  string
	retry      retryx.Config
	clock      func() time.Time
}

func NewLeboncoinSource(httpClient *http.Client, retry retryx.Config) *LeboncoinSource {
	return &LeboncoinSource{
		httpClient: httpClient,
		searchURL:  leboncoinSearchURL,
		retry:      retry,
		clock:      time.Now,
	}
}

func (s *LeboncoinSource) WithSearchURL(url string) *LeboncoinSource {
	s.searchURL = url
	return s
}

func (s *LeboncoinSource) Name() string { return "leboncoin" }

func (s *LeboncoinSource) Fetch(ctx context.Context, maxListings int) ([]*entity.Listing, error) {
	html, err := s.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	cards := cardRe.FindAllStringSubmatch(html, maxListings)
	if len(cards) == 0 {
		logger(ctx).Warn("no listing cards found, page structure may have changed")
		return nil, nil
	}

	now := s.clock()
	listings := make([]*entity.Listing, 0, len(cards))

	for _, card := range cards {
		href, body := card[1], card[2]

		listing := parseCard(href, body, now)
		if listing == nil {
			continue
		}

		listings = append(listings, listing)
	}

	logger(ctx).Info("listings scraped",
		slog.String("source", s.Name()), slog.Int("count", len(listings)))

	return listings, nil
}

func (s *LeboncoinSource) fetchPage(ctx context.Context) (string, error) {
	var html string

	err := s.retry.Do(ctx, "leboncoin search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		html = string(body)
		return nil
	})
	if err != nil {
		return "", err
	}

	return html, nil
}

func parseCard(href, body string, now time.Time) *entity.Listing {
	price := extractPrice(body)
	if price == nil || *price <= 0 {
		return nil
	}

	externalID := strings.TrimSuffix(href[strings.LastIndex(href, "/")+1:], ".htm")
	if externalID == "" {
		return nil
	}

	title := extractTitle(body)
	url := "https://www.leboncoin.fr" + href

	listing := &entity.Listing{
		Source:     "leboncoin",
		ExternalID: externalID,
		URL:        &url,
		Title:      title,
		Price:      *price,
		Surface:    extractSurface(title),
		ScrapedAt:  now,
		UpdatedAt:  now,
	}

	return listing
}

func extractTitle(body string) string {
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		text := strings.TrimSpace(m[1])
		if text != "" && !strings.Contains(text, "€") {
			return text
		}
	}

	return "Garage / Box"
}

func extractPrice(text string) *float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])

	price, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}

	return &price
}

func extractSurface(text string) *float64 {
	m := surfaceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	surface, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}

	return &surface
}
