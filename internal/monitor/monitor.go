// Package monitor implements the block-height monitor: the only component
// allowed to expire a resting order, driven by an external chain height it
// polls and caches.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/store"
)

const pollTimeout = 10 * time.Second

type heightResponse struct {
	Results []struct {
		Height int64 `json:"height"`
	} `json:"results"`
}

// Monitor polls {apiURL}/extended/v1/block?limit=1 at T_exp and expires
// resting orders whose expiration has fallen below the observed height.
type Monitor struct {
	http        *resty.Client
	breaker     *gobreaker.CircuitBreaker
	marketStore *store.MarketStore
	orderStore  *store.OrderStore
	logger      *zap.Logger
	interval    time.Duration
	height      atomic.Int64
}

func New(apiURL string, interval time.Duration, marketStore *store.MarketStore, orderStore *store.OrderStore, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		http: resty.New().
			SetBaseURL(apiURL).
			SetTimeout(pollTimeout),
		breaker:     gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "chain-height-monitor"}),
		marketStore: marketStore,
		orderStore:  orderStore,
		logger:      logger,
		interval:    interval,
	}
}

// Height returns the highest observed block height.
func (m *Monitor) Height() int64 { return m.height.Load() }

// Run polls on a ticker until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	result, err := m.breaker.Execute(func() (interface{}, error) {
		var out heightResponse
		resp, err := m.http.R().SetContext(ctx).SetResult(&out).Get("/extended/v1/block?limit=1")
		if err != nil {
			return int64(0), err
		}
		if resp.IsError() || len(out.Results) == 0 {
			return int64(0), errNoHeight
		}
		return out.Results[0].Height, nil
	})
	if err != nil {
		m.logger.Warn("block height poll failed, cached height unchanged", zap.Error(err))
		return
	}

	height := result.(int64)
	prev := m.height.Load()
	if height <= prev {
		return
	}
	m.height.Store(height)
	m.expireResting(ctx, height)
}

func (m *Monitor) expireResting(ctx context.Context, height int64) {
	for _, marketID := range m.marketStore.OpenMarketIDs() {
		for _, o := range m.orderStore.GetMarketOrders(marketID) {
			if !o.Status.IsResting() {
				continue
			}
			if o.Expiration == 0 || o.Expiration >= height {
				continue
			}
			if ok, err := m.orderStore.ExpireOrder(ctx, o.OrderID); err != nil || !ok {
				if err != nil {
					m.logger.Error("failed to expire order", zap.String("order_id", o.OrderID), zap.Error(err))
				}
			}
		}
	}
}

type monitorError string

func (e monitorError) Error() string { return string(e) }

const errNoHeight = monitorError("chain API returned no block results")
