// Package worker содержит долгоживущие фоновые циклы.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"boxradar/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type TransactionSource interface {
	Cities() []string
	MedianSellPerSqm(ctx context.Context, city string) (*float64, error)
}

type AggregateRefresher interface {
	RefreshSellPrice(ctx context.Context, area string, sellPerSqm float64) error
}

// MarketRefresher периодически пересчитывает среднюю цену продажи каждого
// города по открытым данным о сделках. Упавший город сохраняет прежнее
// значение; справочные умолчания остаются опорой, пока источник не отвечает.
type MarketRefresher struct {
	source  TransactionSource
	market  AggregateRefresher
	refresh time.Duration

	requestInterval time.Duration
	lastRequest     time.Time

	// control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
}

func NewMarketRefresher(source TransactionSource, market AggregateRefresher, refresh time.Duration) *MarketRefresher {
	return &MarketRefresher{
		source:          source,
		market:          market,
		refresh:         refresh,
		requestInterval: 750 * time.Millisecond,
	}
}

func (w *MarketRefresher) WithRequestInterval(d time.Duration) *MarketRefresher {
	w.requestInterval = d
	return w
}

func (w *MarketRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("refresher is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger(runCtx).Error("refresher stopped", slog.Any("error", err))
		}
	}()

	return nil
}

func (w *MarketRefresher) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *MarketRefresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// Run обновляет сразу, затем на каждом тике.
func (w *MarketRefresher) Run(ctx context.Context) error {
	logger(ctx).Info("market refresher started", slog.Duration("interval", w.refresh))

	w.RefreshAll(ctx)

	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).Info("market refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.RefreshAll(ctx)
		}
	}
}

// RefreshAll обходит каждый отслеживаемый город один раз, разнося запросы,
// чтобы не нагружать зеркало открытых данных.
func (w *MarketRefresher) RefreshAll(ctx context.Context) {
	var updated, skipped int

	for _, city := range w.source.Cities() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ok, err := w.refreshOne(ctx, city)
		if err != nil {
			logger(ctx).Error("city refresh failed",
				slog.String("city", city), slog.Any("error", err))
			continue
		}

		if ok {
			updated++
		} else {
			skipped++
		}
	}

	logger(ctx).Info("market refresh completed",
		slog.Int("updated", updated), slog.Int("skipped", skipped))
}

func (w *MarketRefresher) refreshOne(ctx context.Context, city string) (bool, error) {
	if err := w.waitForNextSlot(ctx); err != nil {
		return false, err
	}

	price, err := w.source.MedianSellPerSqm(ctx, city)
	if err != nil {
		return false, err
	}

	if price == nil {
		// Данных мало, прежнее значение остаётся
		return false, nil
	}

	if err := w.market.RefreshSellPrice(ctx, city, *price); err != nil {
		return false, err
	}

	return true, nil
}

func (w *MarketRefresher) waitForNextSlot(ctx context.Context) error {
	if w.lastRequest.IsZero() {
		w.lastRequest = time.Now()
		return nil
	}

	elapsed := time.Since(w.lastRequest)
	if elapsed >= w.requestInterval {
		w.lastRequest = time.Now()
		return nil
	}

	select {
	case <-time.After(w.requestInterval - elapsed):
		w.lastRequest = time.Now()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
