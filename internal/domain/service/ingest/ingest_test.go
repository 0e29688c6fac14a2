package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain/entity"
)

type stubSource struct {
	name     string
	listings []*entity.Listing
	err      error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _ int) ([]*entity.Listing, error) {
	return s.listings, s.err
}

type stubStore struct {
	stored   []*entity.Listing
	inserted int
	err      error
}

func (s *stubStore) UpsertBatch(_ context.Context, listings []*entity.Listing) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.stored = append(s.stored, listings...)
	return s.inserted, nil
}

func TestIngestAssignsIDs(t *testing.T) {
	src := &stubSource{name: "mock", listings: []*entity.Listing{
		{Source: "mock", ExternalID: "a", Title: "Box", Price: 9000},
		{Source: "mock", ExternalID: "b", Title: "Garage", Price: 12000},
	}}
	store := &stubStore{inserted: 2}

	res, err := NewService(store, 100, src).Ingest(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{Fetched: 2, Inserted: 2}, res)
	require.Len(t, store.stored, 2)
	require.NotEmpty(t, store.stored[0].ID)
	require.NotEqual(t, store.stored[0].ID, store.stored[1].ID)
}

func TestIngestSurvivesOneBrokenSource(t *testing.T) {
	broken := &stubSource{name: "leboncoin", err: errors.New("blocked")}
	working := &stubSource{name: "mock", listings: []*entity.Listing{
		{Source: "mock", ExternalID: "a", Title: "Box", Price: 9000},
	}}
	store := &stubStore{inserted: 1}

	res, err := NewService(store, 100, broken, working).Ingest(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{Fetched: 1, Inserted: 1}, res)
}

func TestIngestFailsWhenAllSourcesFail(t *testing.T) {
	broken := &stubSource{name: "leboncoin", err: errors.New("blocked")}

	_, err := NewService(&stubStore{}, 100, broken).Ingest(context.Background())

	require.Error(t, err)
}

func TestIngestPropagatesStoreErrors(t *testing.T) {
	src := &stubSource{name: "mock", listings: []*entity.Listing{
		{Source: "mock", ExternalID: "a", Title: "Box", Price: 9000},
	}}
	store := &stubStore{err: errors.New("db down")}

	_, err := NewService(store, 100, src).Ingest(context.Background())

	require.Error(t, err)
}
