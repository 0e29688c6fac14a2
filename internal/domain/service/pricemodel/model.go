// Package pricemodel обучает и отдаёт регрессионную оценку справедливой цены.
package pricemodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/contextx"
	"boxradar/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// Порядок признаков — часть контракта артефакта: веса хранятся в этом
// порядке, свободный член под индексом 0.
//
//nolint:gochecknoglobals
var featureNames = []string{
	"intercept",
	"surface",
	"city_avg_sell_per_sqm",
	"transport_score",
	"accessibility_score",
	"photos_count",
}

const (
	defaultMinSamples = 100

	// Подстановки для суб-баллов, отсутствующих в обучающей строке.
	fallbackTransportScore     = 30.0
	fallbackAccessibilityScore = 20.0

	// Малый гребневой член сохраняет разрешимость нормальных уравнений,
	// когда столбец признака вырождается (например, снимок одного города).
	ridgeLambda = 1e-6
)

// TrainingRow — одно обогащённое объявление, развёрнутое для обучения.
// Цена и площадь гарантированно не null запросом снимка.
type TrainingRow struct {
	Price              float64
	Surface            float64
	CitySellPerSqm     float64
	TransportScore     *float64
	AccessibilityScore *float64
	PhotosCount        int
}

type TrainingDataSource interface {
	SelectTrainingRows(ctx context.Context) ([]TrainingRow, error)
}

type ModelRepository interface {
	Create(ctx context.Context, model *entity.PriceModel) error
	GetActive(ctx context.Context) (*entity.PriceModel, error)
	Activate(ctx context.Context, version int) error
}

type Service struct {
	rows       TrainingDataSource
	models     ModelRepository
	minSamples int
	clock      func() time.Time

	mu     sync.RWMutex
	active *entity.PriceModel
}

func NewService(rows TrainingDataSource, models ModelRepository) *Service {
	return &Service{
		rows:       rows,
		models:     models,
		minSamples: defaultMinSamples,
		clock:      time.Now,
	}
}

func (s *Service) WithMinSamples(n int) *Service {
	s.minSamples = n
	return s
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Train делает снимок обогащённых объявлений и обучает новую версию
// артефакта. Решение замкнутое, одинаковые снимки дают одинаковые веса.
// Новая версия НЕ активируется; активную версию выбирает вызывающий.
func (s *Service) Train(ctx context.Context) (*entity.PriceModel, error) {
	rows, err := s.rows.SelectTrainingRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("select training rows: %w", err)
	}

	if len(rows) < s.minSamples {
		return nil, domain.NewError(
			errcodes.InsufficientTrainingData,
			fmt.Sprintf("not enough samples to train (%d < %d)", len(rows), s.minSamples),
		)
	}

	weights, err := fit(rows)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	model := &entity.PriceModel{
		Features:    featureNames,
		Weights:     weights,
		SampleCount: len(rows),
		TrainedAt:   s.clock(),
	}

	if err := s.models.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	logger(ctx).Info(
		"price model trained",
		slog.Int("version", model.Version),
		slog.Int("samples", model.SampleCount),
	)

	return model, nil
}

// Activate переводит хранимый флаг active на указанную версию и атомарно
// подменяет артефакт в памяти; читатели не видят полуобновлённую модель.
func (s *Service) Activate(ctx context.Context, version int) error {
	if err := s.models.Activate(ctx, version); err != nil {
		return fmt.Errorf("activate version %d: %w", version, err)
	}

	s.mu.Lock()
	s.active = nil // force reload on next predict
	s.mu.Unlock()

	return nil
}

// PredictInput несёт признаки объявления, нужные модели. Площадь и базовая
// цена продажи города обязательны; отсутствующие суб-баллы откатываются на
// те же значения, что и при обучении.
type PredictInput struct {
	Surface            *float64
	City               *string
	CitySellPerSqm     *float64
	TransportScore     *float64
	AccessibilityScore *float64
	PhotosCount        int
}

// Predict возвращает справедливую цену либо nil, когда объявлению не хватает
// признаков или нет активного артефакта.
func (s *Service) Predict(ctx context.Context, in PredictInput) *float64 {
	if in.Surface == nil || *in.Surface <= 0 || in.City == nil || in.CitySellPerSqm == nil {
		return nil
	}

	model := s.activeModel(ctx)
	if model == nil {
		return nil
	}

	features := []float64{
		1,
		*in.Surface,
		*in.CitySellPerSqm,
		orDefault(in.TransportScore, fallbackTransportScore),
		orDefault(in.AccessibilityScore, fallbackAccessibilityScore),
		float64(in.PhotosCount),
	}

	if len(model.Weights) != len(features) {
		logger(ctx).Error(
			"artifact feature mismatch",
			slog.Int("version", model.Version),
			slog.Int("weights", len(model.Weights)),
		)
		return nil
	}

	var fair float64
	for i, w := range model.Weights {
		fair += w * features[i]
	}

	if fair <= 0 || math.IsNaN(fair) || math.IsInf(fair, 0) {
		return nil
	}

	fair = math.Round(fair*100) / 100

	return &fair
}

// Deviation — процентное отклонение запрошенной цены от справедливой;
// положительное означает переоценён.
func Deviation(price float64, fairPrice *float64) *float64 {
	if fairPrice == nil || *fairPrice <= 0 {
		return nil
	}

	d := math.Round((price-*fairPrice)/(*fairPrice)*100*100) / 100

	return &d
}

func (s *Service) activeModel(ctx context.Context) *entity.PriceModel {
	s.mu.RLock()
	model := s.active
	s.mu.RUnlock()

	if model != nil {
		return model
	}

	model, err := s.models.GetActive(ctx)
	if err != nil {
		var appErr *domain.AppError
		if !errors.As(err, &appErr) || appErr.Code != errcodes.ModelNotFound {
			logger(ctx).Error("load active model", slog.Any("error", err))
		}
		return nil
	}

	s.mu.Lock()
	s.active = model
	s.mu.Unlock()

	return model
}

// fit решает нормальные уравнения с гребневой регуляризацией (XᵀX + λI)w = Xᵀy.
func fit(rows []TrainingRow) ([]float64, error) {
	n := len(rows)
	k := len(featureNames)

	data := make([]float64, 0, n*k)
	ys := make([]float64, 0, n)

	for _, r := range rows {
		data = append(data,
			1,
			r.Surface,
			r.CitySellPerSqm,
			orDefault(r.TransportScore, fallbackTransportScore),
			orDefault(r.AccessibilityScore, fallbackAccessibilityScore),
			float64(r.PhotosCount),
		)
		ys = append(ys, r.Price)
	}

	x := mat.NewDense(n, k, data)
	y := mat.NewVecDense(n, ys)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < k; i++ {
		xtx.Set(i, i, xtx.At(i, i)+ridgeLambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	weights := make([]float64, k)
	copy(weights, w.RawVector().Data)

	return weights, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
