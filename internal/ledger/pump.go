package ledger

import (
	"fmt"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
)

// TickResult описывает, что сделал один тик.
type TickResult int

const (
	TickNoop TickResult = iota
	TickAccrued
	TickCompleted
)

func (r TickResult) String() string {
	switch r {
	case TickAccrued:
		return "accrued"
	case TickCompleted:
		return "completed"
	default:
		return "noop"
	}
}

// MaxPumpDurationMinutes – верхняя граница длительности пампа (10 лет).
// Держит EndTime в пределах time.Duration и колонки INTEGER.
const MaxPumpDurationMinutes = 10 * 365 * 24 * 60

// NewSimulatedPump планирует рост позиции на percentage процентов за durationMinutes.
// Требует ненулевую позицию, её количество запоминается как InitialAmount.
func NewSimulatedPump(p *models.Portfolio, coinID string, percentage money.Money, durationMinutes int, now time.Time) (*models.SimulatedPump, error) {
	if !percentage.IsPositive() {
		return nil, fmt.Errorf("%w: percentage must be positive", ErrInvalidAmount)
	}
	if durationMinutes <= 0 || durationMinutes > MaxPumpDurationMinutes {
		return nil, fmt.Errorf("%w: %d minutes, expected 1..%d", ErrInvalidDuration, durationMinutes, MaxPumpDurationMinutes)
	}
	h, ok := p.Holding(coinID)
	if !ok || !h.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: user %d holds no %s", ErrNoEligibleHolding, p.UserID, coinID)
	}

	return &models.SimulatedPump{
		UserID:              p.UserID,
		CoinID:              coinID,
		Percentage:          percentage,
		DurationMinutes:     durationMinutes,
		StartTime:           now,
		EndTime:             now.Add(time.Duration(durationMinutes) * time.Minute),
		CompletedPercentage: money.Zero,
		IsActive:            true,
		InitialAmount:       h.Amount,
		CurrentGainAmount:   money.Zero,
		CreatedAt:           now,
	}, nil
}

// TickPump продвигает памп к моменту now, изменяя pump и p на месте.
// Повторный вызов с тем же или более ранним now ничего не делает.
func TickPump(pump *models.SimulatedPump, p *models.Portfolio, now time.Time) TickResult {
	if !pump.IsActive {
		return TickNoop
	}

	if !now.Before(pump.EndTime) {
		pump.CompletedPercentage = pump.Percentage
		pump.IsActive = false
		p.PumpGainPercent = p.PumpGainPercent.Add(pump.Percentage)
		return TickCompleted
	}

	window := pump.EndTime.Sub(pump.StartTime)
	elapsed := now.Sub(pump.StartTime)
	if elapsed <= 0 || window <= 0 {
		return TickNoop
	}
	target := pump.Percentage.MulRatio(int64(elapsed), int64(window))
	if target.GreaterThan(pump.Percentage) {
		target = pump.Percentage
	}
	if !target.GreaterThan(pump.CompletedPercentage) {
		return TickNoop
	}

	increment := target.Sub(pump.CompletedPercentage)
	// если позицию уже продали или вывели, процент двигается без начисления
	if h, ok := p.Holding(pump.CoinID); ok {
		h.Amount = h.Amount.Add(h.Amount.Percent(increment))
		p.SetHolding(h)
		pump.CurrentGainAmount = h.Amount.Sub(pump.InitialAmount)
	}
	pump.CompletedPercentage = target
	return TickAccrued
}

// CancelPump останавливает дальнейшее начисление. Уже начисленный рост остаётся,
// процент завершённых пампов не пополняется.
func CancelPump(pump *models.SimulatedPump) bool {
	if !pump.IsActive {
		return false
	}
	pump.IsActive = false
	return true
}
