package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/retryx"
)

func testRetry() retryx.Config {
	return retryx.Config{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

func TestSampleCountsBothQueries(t *testing.T) {
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := string(body)
		queries = append(queries, query)

		total := `"7"`
		if strings.Contains(query, "shop") {
			total = `"42"`
		}
		_, _ = w.Write([]byte(`{"elements":[{"tags":{"total":` + total + `}}]}`))
	}))
	defer srv.Close()

	client := NewOverpassClient(srv.Client(), srv.URL, 800, testRetry())

	sample, err := client.Sample(context.Background(), 45.76, 4.85)

	require.NoError(t, err)
	require.Equal(t, 7, sample.Stations)
	require.Equal(t, 42, sample.POIs)
	require.Len(t, queries, 2)
	require.Contains(t, queries[0], "bus_stop")
	require.Contains(t, queries[1], "pharmacy")
}

func TestSampleRetriesThenSucceeds(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"elements":[{"tags":{"total":"3"}}]}`))
	}))
	defer srv.Close()

	client := NewOverpassClient(srv.Client(), srv.URL, 800, testRetry())

	sample, err := client.Sample(context.Background(), 48.85, 2.35)

	require.NoError(t, err)
	require.Equal(t, 3, sample.Stations)
}

func TestSampleFailsAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOverpassClient(srv.Client(), srv.URL, 800, testRetry())

	_, err := client.Sample(context.Background(), 48.85, 2.35)

	require.Error(t, err)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.TransientDataError, code)
}

func TestSampleTimeoutIsTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	client := NewOverpassClient(srv.Client(), srv.URL, 800, testRetry())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Sample(ctx, 48.85, 2.35)

	require.Error(t, err)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.TimeoutExceeded, code)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"string total", `{"elements":[{"tags":{"total":"15"}}]}`, 15},
		{"numeric total", `{"elements":[{"tags":{"total":15}}]}`, 15},
		{"no elements", `{"elements":[]}`, 0},
		{"no total tag", `{"elements":[{"tags":{}}]}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCount([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseCountRejectsGarbage(t *testing.T) {
	_, err := parseCount([]byte(`{"elements":[{"tags":{"total":"many"}}]}`))
	require.Error(t, err)
}
