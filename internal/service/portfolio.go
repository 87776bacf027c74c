package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linemk/sim-exchange/internal/ledger"
	"github.com/linemk/sim-exchange/internal/lib/money"
)

// PortfolioView – портфель с оценкой позиций по текущим ценам.
type PortfolioView struct {
	UserID          int64         `json:"userId"`
	Cash            money.Money   `json:"cash"`
	PumpGainPercent money.Money   `json:"pumpGainPercent"`
	Holdings        []HoldingView `json:"holdings"`
	// TotalValue – деньги плюс позиции, для которых известна цена.
	TotalValue money.Money `json:"totalValue"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type HoldingView struct {
	CoinID       string       `json:"coinId"`
	Symbol       string       `json:"symbol,omitempty"`
	Name         string       `json:"name"`
	Amount       money.Money  `json:"amount"`
	AveragePrice money.Money  `json:"averagePrice"`
	CurrentPrice *money.Money `json:"currentPrice,omitempty"`
	Value        *money.Money `json:"value,omitempty"`
}

// GetPortfolio продвигает пампы пользователя и возвращает портфель с оценкой.
// Если цена монеты недоступна, позиция отдаётся без оценки.
func (s *ledgerService) GetPortfolio(ctx context.Context, userID int64) (*PortfolioView, error) {
	const op = "service.LedgerService.GetPortfolio"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	p, ticked, err := s.withPortfolio(ctx, op, logger, userID, s.now(), noMutation)
	if err != nil {
		s.logFailure(logger, "failed to load portfolio", err)
		return nil, err
	}
	if ticked > 0 {
		logger.Debug("pumps settled on read", slog.Int("ticked", ticked))
	}

	view := &PortfolioView{
		UserID:          p.UserID,
		Cash:            p.Cash,
		PumpGainPercent: p.PumpGainPercent,
		Holdings:        make([]HoldingView, 0, len(p.Holdings)),
		TotalValue:      p.Cash,
		UpdatedAt:       p.UpdatedAt,
	}

	for _, coinID := range p.CoinIDs() {
		h := p.Holdings[coinID]
		hv := HoldingView{
			CoinID:       coinID,
			Name:         ledger.CoinName(coinID),
			Amount:       h.Amount,
			AveragePrice: h.AveragePrice,
		}
		if coin, ok := ledger.LookupCoin(coinID); ok {
			hv.Symbol = coin.Symbol
		}

		price, err := s.prices.GetCurrentPrice(ctx, coinID)
		if err != nil {
			logger.Warn("price unavailable, holding left unvalued", slog.String("coinID", coinID), slog.Any("error", err))
		} else {
			value := h.Amount.Mul(price)
			hv.CurrentPrice = &price
			hv.Value = &value
			view.TotalValue = view.TotalValue.Add(value)
		}
		view.Holdings = append(view.Holdings, hv)
	}

	return view, nil
}
