package exchange

import (
	"context"
	"errors"
	"time"

	"perpbot/internal/models"
)

// Интерфейсы внешних коллабораторов. Ядро не знает протоколов бирж:
// адаптеры реальных бирж реализуют эти интерфейсы снаружи.

// Ошибки исполнения
var (
	ErrUnknownAsset  = errors.New("unknown asset")
	ErrOrderRejected = errors.New("order rejected")
	ErrNoMarketData  = errors.New("no market data for asset")
)

// Fill - результат исполнения order intent
type Fill struct {
	Asset     string    `json:"asset"`
	Price     float64   `json:"price"` // цена исполнения
	Notional  float64   `json:"notional"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionClient исполняет order intents
type ExecutionClient interface {
	// Execute отправляет ордер и ждёт исполнения.
	// Временные ошибки оборачиваются retry.Temporary, окончательные
	// отклонения - retry.Permanent.
	Execute(ctx context.Context, intent models.OrderIntent) (Fill, error)
}

// MarketDataFeed поставляет снимки цены и funding-ставки
type MarketDataFeed interface {
	Price(ctx context.Context, asset string) (models.PriceSnapshot, error)
	FundingWindow(ctx context.Context, asset string) (models.FundingWindow, error)
}

// AccountProvider поставляет снимки счёта
type AccountProvider interface {
	Snapshot(ctx context.Context) (models.AccountSnapshot, error)
}
