package pricemodel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/pricemodel"
	"boxradar/pkg/errcodes"
)

type fakeRows struct {
	rows []pricemodel.TrainingRow
}

func (f *fakeRows) SelectTrainingRows(context.Context) ([]pricemodel.TrainingRow, error) {
	return f.rows, nil
}

type fakeModelRepo struct {
	models map[int]*entity.PriceModel
	active int
	next   int
}

func newFakeModelRepo() *fakeModelRepo {
	return &fakeModelRepo{models: map[int]*entity.PriceModel{}}
}

func (f *fakeModelRepo) Create(_ context.Context, m *entity.PriceModel) error {
	f.next++
	m.Version = f.next
	stored := *m
	f.models[m.Version] = &stored
	return nil
}

func (f *fakeModelRepo) GetActive(context.Context) (*entity.PriceModel, error) {
	if f.active == 0 {
		return nil, domain.NewError(errcodes.ModelNotFound, "no active model")
	}
	return f.models[f.active], nil
}

func (f *fakeModelRepo) Activate(_ context.Context, version int) error {
	if _, ok := f.models[version]; !ok {
		return domain.NewError(errcodes.ModelNotFound, "unknown version")
	}
	f.active = version
	return nil
}

// Synthetic market: price is exactly 520×surface + 0.9×cityBaseline.
func linearRows(n int) []pricemodel.TrainingRow {
	rows := make([]pricemodel.TrainingRow, 0, n)
	for i := 0; i < n; i++ {
		surface := 8 + float64(i%20)
		baseline := 800 + float64(i%5)*150
		transport := 30 + float64(i%7)*10
		rows = append(rows, pricemodel.TrainingRow{
			Price:          520*surface + 0.9*baseline,
			Surface:        surface,
			CitySellPerSqm: baseline,
			TransportScore: &transport,
			PhotosCount:    i % 8,
		})
	}
	return rows
}

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func TestTrainBelowMinimumFails(t *testing.T) {
	rq := require.New(t)

	svc := pricemodel.NewService(&fakeRows{rows: linearRows(99)}, newFakeModelRepo())

	_, err := svc.Train(context.Background())
	rq.Error(err)

	code, ok := domain.GetCode(err)
	rq.True(ok)
	rq.Equal(errcodes.InsufficientTrainingData, code)
}

func TestTrainAtMinimumProducesArtifact(t *testing.T) {
	rq := require.New(t)

	repo := newFakeModelRepo()
	svc := pricemodel.NewService(&fakeRows{rows: linearRows(100)}, repo)

	model, err := svc.Train(context.Background())
	rq.NoError(err)
	rq.Equal(1, model.Version)
	rq.Equal(100, model.SampleCount)
	rq.Len(model.Weights, 6)
	rq.NotNil(repo.models[1])
}

func TestTrainIsDeterministicAndVersioned(t *testing.T) {
	rq := require.New(t)

	clock := func() time.Time { return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) }

	repo := newFakeModelRepo()
	svc := pricemodel.NewService(&fakeRows{rows: linearRows(150)}, repo).WithClock(clock)

	first, err := svc.Train(context.Background())
	rq.NoError(err)

	second, err := svc.Train(context.Background())
	rq.NoError(err)

	rq.Equal(2, second.Version)
	rq.Equal(first.Weights, second.Weights)
	// the first artifact is untouched
	rq.Equal(first.Weights, repo.models[1].Weights)
}

func TestPredictRecoversLinearMarket(t *testing.T) {
	rq := require.New(t)

	repo := newFakeModelRepo()
	svc := pricemodel.NewService(&fakeRows{rows: linearRows(200)}, repo)

	model, err := svc.Train(context.Background())
	rq.NoError(err)
	rq.NoError(svc.Activate(context.Background(), model.Version))

	fair := svc.Predict(context.Background(), pricemodel.PredictInput{
		Surface:        fptr(15),
		City:           sptr("Lyon"),
		CitySellPerSqm: fptr(1400),
		TransportScore: fptr(78),
		PhotosCount:    4,
	})
	rq.NotNil(fair)
	rq.InDelta(520*15+0.9*1400, *fair, 50)
}

func TestPredictUnknowns(t *testing.T) {
	rq := require.New(t)

	repo := newFakeModelRepo()
	svc := pricemodel.NewService(&fakeRows{rows: linearRows(120)}, repo)

	in := pricemodel.PredictInput{
		Surface:        fptr(15),
		City:           sptr("Lyon"),
		CitySellPerSqm: fptr(1400),
	}

	// no active artifact yet
	rq.Nil(svc.Predict(context.Background(), in))

	model, err := svc.Train(context.Background())
	rq.NoError(err)
	rq.NoError(svc.Activate(context.Background(), model.Version))

	rq.NotNil(svc.Predict(context.Background(), in))

	missingSurface := in
	missingSurface.Surface = nil
	rq.Nil(svc.Predict(context.Background(), missingSurface))

	missingCity := in
	missingCity.City = nil
	rq.Nil(svc.Predict(context.Background(), missingCity))
}

func TestDeviation(t *testing.T) {
	rq := require.New(t)

	rq.Nil(pricemodel.Deviation(8000, nil))
	rq.Nil(pricemodel.Deviation(8000, fptr(0)))

	over := pricemodel.Deviation(11000, fptr(10000))
	rq.NotNil(over)
	rq.InDelta(10.0, *over, 0.001)

	under := pricemodel.Deviation(9000, fptr(10000))
	rq.NotNil(under)
	rq.InDelta(-10.0, *under, 0.001)
}
