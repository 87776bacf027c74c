package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/sim-exchange/internal/lib/money"
)

var ErrPriceNotFound = errors.New("price not found")

// PriceSource отдаёт текущую цену монеты в долларах.
// Ядро доверяет цене как есть, свежесть обеспечивает сам источник.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, coinID string) (money.Money, error)
}

// StaticSource – фиксированные цены из конфига, для локального запуска и тестов.
type StaticSource struct {
	prices map[string]money.Money
}

func NewStaticSource(prices map[string]string) (*StaticSource, error) {
	const op = "market.NewStaticSource"

	parsed := make(map[string]money.Money, len(prices))
	for coinID, raw := range prices {
		price, err := money.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: price for %s: %w", op, coinID, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("%s: negative price for %s", op, coinID)
		}
		parsed[coinID] = price
	}
	return &StaticSource{prices: parsed}, nil
}

func (s *StaticSource) GetCurrentPrice(_ context.Context, coinID string) (money.Money, error) {
	price, ok := s.prices[coinID]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %s", ErrPriceNotFound, coinID)
	}
	return price, nil
}
