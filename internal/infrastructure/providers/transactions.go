package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"boxradar/pkg/retryx"
)

// Per-unit price bounds for garage/parking transactions. Outside the range
// the row is a data error or a commercial storage unit, not a parking space.
const (
	minPerLot = 1_500.0
	maxPerLot = 150_000.0

	// Assumed surface for converting a per-unit price into €/m².
	typicalGarageSqm = 12.0

	// Fewer valid transactions than this and the median is noise.
	minTransactions = 5
)

// communeSet lists the DVF CSV file codes for one city. Cities split into
// arrondissements (Paris, Lyon, Marseille) publish one file per
// arrondissement.
type communeSet struct {
	dept     string
	communes []string
}

// TransactionsClient downloads per-commune garage sale records from the
// geo-dvf open-data portal and reduces them to a median price per m².
type TransactionsClient struct {
	httpClient *http.Client
	baseURL    string
	year       string
	retry      retryx.Config
}

func NewTransactionsClient(httpClient *http.Client, baseURL, year string, retry retryx.Config) *TransactionsClient {
	return &TransactionsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		year:       year,
		retry:      retry,
	}
}

// Cities returns the tracked city names in stable order.
func (c *TransactionsClient) Cities() []string {
	cities := make([]string, 0, len(cityCommunes))
	for city := range cityCommunes {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// MedianSellPerSqm downloads every commune file for the city and returns the
// median garage price in €/m². Returns nil without error when the city is
// untracked or has too few valid transactions to trust.
func (c *TransactionsClient) MedianSellPerSqm(ctx context.Context, city string) (*float64, error) {
	set, ok := cityCommunes[city]
	if !ok {
		return nil, nil
	}

	var prices []float64

	for _, commune := range set.communes {
		communePrices, err := c.fetchCommune(ctx, set.dept, commune)
		if err != nil {
			return nil, fmt.Errorf("commune %s: %w", commune, err)
		}
		prices = append(prices, communePrices...)
	}

	if len(prices) < minTransactions {
		logger(ctx).Debug("too few transactions",
			slog.String("city", city), slog.Int("count", len(prices)))
		return nil, nil
	}

	perSqm := round2(median(prices) / typicalGarageSqm)

	logger(ctx).Info("transaction median computed",
		slog.String("city", city),
		slog.Float64("per-sqm", perSqm),
		slog.Int("transactions", len(prices)))

	return &perSqm, nil
}

// fetchCommune downloads one CSV. A 404 means the commune is absent from this
// year's directory and yields no prices.
func (c *TransactionsClient) fetchCommune(ctx context.Context, dept, commune string) ([]float64, error) {
	url := fmt.Sprintf("%s/%s/communes/%s/%s.csv", c.baseURL, c.year, dept, commune)

	var prices []float64

	err := c.retry.Do(ctx, "dvf download", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			prices = nil
			return nil
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		prices, err = parseGaragePrices(resp.Body)
		if err != nil {
			return fmt.Errorf("parse csv: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return prices, nil
}

// parseGaragePrices extracts per-unit garage prices from one DVF commune CSV.
//
// valeur_fonciere is the TOTAL transaction price, duplicated on every property
// row of the same mutation: a sale of two 40k€ garages shows 80k€ on both
// rows. Rows are grouped by id_mutation, the price taken once, and divided by
// the Dépendance lot count of the mutation.
func parseGaragePrices(r io.Reader) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"id_mutation", "nature_mutation", "type_local", "valeur_fonciere"} {
		if _, ok := col[required]; !ok {
			return nil, nil
		}
	}

	type mutation struct {
		price float64
		lots  int
	}

	mutations := map[string]*mutation{}
	order := make([]string, 0, 64)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		if field(record, col["nature_mutation"]) != "Vente" ||
			field(record, col["type_local"]) != "Dépendance" {
			continue
		}

		// DVF may use a comma as the decimal separator
		rawPrice := strings.ReplaceAll(field(record, col["valeur_fonciere"]), ",", ".")
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil || price <= 0 {
			continue
		}

		id := field(record, col["id_mutation"])
		if m, ok := mutations[id]; ok {
			m.lots++
		} else {
			mutations[id] = &mutation{price: price, lots: 1}
			order = append(order, id)
		}
	}

	prices := make([]float64, 0, len(order))

	for _, id := range order {
		m := mutations[id]
		perLot := m.price / float64(m.lots)
		if perLot >= minPerLot && perLot <= maxPerLot {
			prices = append(prices, perLot)
		}
	}

	return prices, nil
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

//nolint:gochecknoglobals
var cityCommunes = map[string]communeSet{
	"Paris":       {dept: "75", communes: arrondissements("751", 1, 20)},
	"Lyon":        {dept: "69", communes: arrondissements("6938", 1, 9)},
	"Marseille":   {dept: "13", communes: arrondissements("132", 1, 16)},
	"Bordeaux":    {dept: "33", communes: []string{"33063"}},
	"Toulouse":    {dept: "31", communes: []string{"31555"}},
	"Nantes":      {dept: "44", communes: []string{"44109"}},
	"Montpellier": {dept: "34", communes: []string{"34172"}},
	"Lille":       {dept: "59", communes: []string{"59350"}},
	"Rennes":      {dept: "35", communes: []string{"35238"}},
	"Nice":        {dept: "06", communes: []string{"06088"}},
	"Grenoble":    {dept: "38", communes: []string{"38185"}},
}

func arrondissements(prefix string, from, to int) []string {
	codes := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		switch len(prefix) {
		case 3:
			codes = append(codes, fmt.Sprintf("%s%02d", prefix, i))
		default:
			codes = append(codes, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return codes
}
