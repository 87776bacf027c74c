package ledger

import (
	"fmt"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide проверяет направление сделки.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// ExecuteTrade применяет покупку или продажу по переданной цене.
// Исходный портфель не меняется; при ошибке возвращается nil.
func ExecuteTrade(p *models.Portfolio, coinID string, side Side, quantity, unitPrice money.Money, now time.Time) (*models.Portfolio, *models.Transaction, error) {
	if !quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidAmount)
	}
	if unitPrice.IsNegative() {
		return nil, nil, fmt.Errorf("%w: price must not be negative", ErrInvalidAmount)
	}

	total := quantity.Mul(unitPrice)
	updated := p.Clone()

	switch side {
	case SideBuy:
		if total.GreaterThan(p.Cash) {
			return nil, nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total, p.Cash)
		}
		updated.Cash = p.Cash.Sub(total)

		h, ok := p.Holding(coinID)
		if !ok {
			h = models.Holding{CoinID: coinID, Amount: quantity, AveragePrice: unitPrice}
		} else {
			// средняя цена взвешивается по количеству, продажи её не меняют
			newAmount := h.Amount.Add(quantity)
			cost := h.Amount.Mul(h.AveragePrice).Add(total)
			h.AveragePrice = cost.Div(newAmount)
			h.Amount = newAmount
		}
		updated.SetHolding(h)

	case SideSell:
		h, ok := p.Holding(coinID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoSuchHolding, coinID)
		}
		if quantity.GreaterThan(h.Amount) {
			return nil, nil, fmt.Errorf("%w: want %s, have %s", ErrInsufficientQuantity, quantity, h.Amount)
		}
		updated.Cash = p.Cash.Add(total)
		// при продаже всего объёма позиция удаляется вместе со средней ценой
		h.Amount = h.Amount.Sub(quantity)
		updated.SetHolding(h)

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}

	txType := models.TransactionBuy
	if side == SideSell {
		txType = models.TransactionSell
	}
	record := &models.Transaction{
		UserID:    p.UserID,
		CoinID:    coinID,
		CoinName:  CoinName(coinID),
		Type:      txType,
		Amount:    quantity,
		Price:     unitPrice,
		Total:     total,
		CreatedAt: now,
	}
	return updated, record, nil
}
