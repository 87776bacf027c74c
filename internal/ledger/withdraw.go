package ledger

import (
	"fmt"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
)

// Withdraw выводит монеты из симуляции: деньги не начисляются,
// а накопленный процент пампов обнуляется.
func Withdraw(p *models.Portfolio, coinID string, quantity money.Money, now time.Time) (*models.Portfolio, *models.Transaction, error) {
	if !quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidAmount)
	}
	h, ok := p.Holding(coinID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoSuchHolding, coinID)
	}
	if quantity.GreaterThan(h.Amount) {
		return nil, nil, fmt.Errorf("%w: want %s, have %s", ErrInsufficientQuantity, quantity, h.Amount)
	}

	updated := p.Clone()
	h.Amount = h.Amount.Sub(quantity)
	updated.SetHolding(h)
	updated.PumpGainPercent = money.Zero

	record := &models.Transaction{
		UserID:    p.UserID,
		CoinID:    coinID,
		CoinName:  CoinName(coinID),
		Type:      models.TransactionWithdraw,
		Amount:    quantity,
		Price:     money.Zero,
		Total:     money.Zero,
		CreatedAt: now,
	}
	return updated, record, nil
}

// Grant – административное начисление. Для монет средняя цена не пересчитывается:
// начисление не является покупкой.
func Grant(p *models.Portfolio, asset Asset, amount money.Money, now time.Time) (*models.Portfolio, *models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	updated := p.Clone()
	record := &models.Transaction{
		UserID:    p.UserID,
		Type:      models.TransactionDeposit,
		Amount:    amount,
		Price:     money.Zero,
		Total:     money.Zero,
		CreatedAt: now,
	}

	if asset == AssetCash {
		updated.Cash = p.Cash.Add(amount)
		updated.PumpGainPercent = money.Zero
		record.CoinID = string(AssetCash)
		record.CoinName = "Cash"
		record.Total = amount
		return updated, record, nil
	}

	coinID, ok := asset.CoinID()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
	h, ok := p.Holding(coinID)
	if !ok {
		h = models.Holding{CoinID: coinID, AveragePrice: money.Zero}
	}
	h.Amount = h.Amount.Add(amount)
	updated.SetHolding(h)

	record.CoinID = coinID
	record.CoinName = CoinName(coinID)
	return updated, record, nil
}
