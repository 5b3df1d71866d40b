package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/models"
	"perpbot/pkg/ratelimit"
	"perpbot/pkg/retry"
)

// PaperExchange - бумажная биржа для стейджинга и тестов ядра.
//
// Исполняет ордера мгновенно по последней загруженной цене,
// уважая rate limit исходящих запросов как настоящий адаптер.
// Цены и funding-ставки публикуются извне через SetPrice/SetFunding
// (реплей исторических данных или синтетический генератор).
type PaperExchange struct {
	mu      sync.RWMutex
	prices  map[string]models.PriceSnapshot
	funding map[string]models.FundingWindow
	account models.AccountSnapshot

	limiter *ratelimit.RateLimiter
	logger  *zap.Logger
}

// NewPaperExchange создаёт бумажную биржу
func NewPaperExchange(rate float64, logger *zap.Logger) *PaperExchange {
	return &PaperExchange{
		prices:  make(map[string]models.PriceSnapshot),
		funding: make(map[string]models.FundingWindow),
		limiter: ratelimit.NewRateLimiter(rate, rate*2),
		logger:  logger,
	}
}

// SetPrice публикует снимок цены
func (p *PaperExchange) SetPrice(asset string, price float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[asset] = models.PriceSnapshot{Asset: asset, Price: price, Timestamp: at}
}

// SetFunding публикует окно funding-ставки
func (p *PaperExchange) SetFunding(w models.FundingWindow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funding[w.Asset] = w
}

// SetAccount публикует снимок счёта
func (p *PaperExchange) SetAccount(acct models.AccountSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = acct
}

// Execute исполняет ордер по последней цене
func (p *PaperExchange) Execute(ctx context.Context, intent models.OrderIntent) (Fill, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Fill{}, err
	}

	if intent.Notional <= 0 {
		return Fill{}, retry.Permanent(fmt.Errorf("%w: non-positive notional %v", ErrOrderRejected, intent.Notional))
	}

	p.mu.RLock()
	snap, ok := p.prices[intent.Asset]
	p.mu.RUnlock()
	if !ok {
		return Fill{}, retry.Permanent(fmt.Errorf("%w: %s", ErrUnknownAsset, intent.Asset))
	}

	p.logger.Debug("paper fill",
		zap.String("asset", intent.Asset),
		zap.String("kind", intent.Kind),
		zap.String("side", intent.Side),
		zap.Float64("notional", intent.Notional),
		zap.Float64("price", snap.Price))

	return Fill{
		Asset:     intent.Asset,
		Price:     snap.Price,
		Notional:  intent.Notional,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Price возвращает последний снимок цены
func (p *PaperExchange) Price(ctx context.Context, asset string) (models.PriceSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap, ok := p.prices[asset]
	if !ok {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %s", ErrNoMarketData, asset)
	}
	return snap, nil
}

// FundingWindow возвращает последнее окно funding
func (p *PaperExchange) FundingWindow(ctx context.Context, asset string) (models.FundingWindow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	w, ok := p.funding[asset]
	if !ok {
		return models.FundingWindow{}, fmt.Errorf("%w: %s", ErrNoMarketData, asset)
	}
	return w, nil
}

// Snapshot возвращает снимок счёта
func (p *PaperExchange) Snapshot(ctx context.Context) (models.AccountSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account, nil
}
