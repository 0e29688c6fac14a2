// Package providers holds clients for the external open-data sources used by
// enrichment: the Overpass API (OpenStreetMap) and the DVF transaction files.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"boxradar/internal/domain"
	"boxradar/internal/domain/value"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/retryx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// Degree deltas approximating the search radius at French latitudes.
const (
	metersPerLatDegree = 111_000.0
	metersPerLonDegree = 80_000.0
)

type OverpassClient struct {
	httpClient   *http.Client
	baseURL      string
	radiusMeters int
	retry        retryx.Config
}

func NewOverpassClient(httpClient *http.Client, baseURL string, radiusMeters int, retry retryx.Config) *OverpassClient {
	return &OverpassClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		radiusMeters: radiusMeters,
		retry:        retry,
	}
}

// Sample counts transport stations and commercial POIs around a point. Both
// counts come back together: a failed query fails the whole sample so the
// caller can degrade to unknown instead of mistaking an outage for zero.
func (c *OverpassClient) Sample(ctx context.Context, lat, lon float64) (*value.GeoSample, error) {
	stations, err := c.count(ctx, transportQuery(lat, lon, c.radiusMeters))
	if err != nil {
		return nil, sampleError(err, "transport query")
	}

	pois, err := c.count(ctx, commercialQuery(lat, lon, c.radiusMeters))
	if err != nil {
		return nil, sampleError(err, "commercial query")
	}

	return &value.GeoSample{Stations: stations, POIs: pois}, nil
}

// sampleError помечает сбой после всех повторов: таймаут отличаем от
// прочих временных сбоев источника.
func sampleError(err error, op string) error {
	code := errcodes.TransientDataError
	if errors.Is(err, context.DeadlineExceeded) {
		code = errcodes.TimeoutExceeded
	}

	return domain.WrapError(err, code, op+" failed")
}

func (c *OverpassClient) count(ctx context.Context, query string) (int, error) {
	var total int

	err := c.retry.Do(ctx, "overpass query", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
			strings.NewReader(url.Values{"data": {query}}.Encode()))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
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

		total, err = parseCount(body)
		if err != nil {
			return fmt.Errorf("parse response: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

// parseCount extracts elements[0].tags.total from an `out count;` response.
// Overpass serializes the total as a string, but numbers are accepted too.
func parseCount(body []byte) (int, error) {
	var payload struct {
		Elements []struct {
			Tags map[string]any `json:"tags"`
		} `json:"elements"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}

	if len(payload.Elements) == 0 {
		return 0, nil
	}

	switch total := payload.Elements[0].Tags["total"].(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.Atoi(total)
		if err != nil {
			return 0, fmt.Errorf("total %q: %w", total, err)
		}
		return n, nil
	case float64:
		return int(total), nil
	default:
		return 0, fmt.Errorf("unexpected total type %T", total)
	}
}

func transportQuery(lat, lon float64, radiusMeters int) string {
	bbox := boundingBox(lat, lon, radiusMeters)

	return fmt.Sprintf(`[out:json][timeout:10];
(
  node["public_transport"="station"](%[1]s);
  node["railway"="station"](%[1]s);
  node["railway"="subway_entrance"](%[1]s);
  node["highway"="bus_stop"](%[1]s);
);
out count;`, bbox)
}

func commercialQuery(lat, lon float64, radiusMeters int) string {
	bbox := boundingBox(lat, lon, radiusMeters)

	return fmt.Sprintf(`[out:json][timeout:10];
(
  node["shop"](%[1]s);
  node["amenity"~"restaurant|cafe|bank|pharmacy"](%[1]s);
);
out count;`, bbox)
}

func boundingBox(lat, lon float64, radiusMeters int) string {
	latDelta := float64(radiusMeters) / metersPerLatDegree
	lonDelta := float64(radiusMeters) / metersPerLonDegree

	return fmt.Sprintf("%f,%f,%f,%f", lat-latDelta, lon-lonDelta, lat+latDelta, lon+lonDelta)
}
