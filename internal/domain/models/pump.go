package models

import (
	"time"

	"github.com/linemk/sim-exchange/internal/lib/money"
)

// SimulatedPump – запланированный администратором искусственный рост одной позиции.
// Рост начисляется линейно по времени, без движения денег и без записи в историю.
type SimulatedPump struct {
	ID                  int64       `json:"id"`
	UserID              int64       `json:"userId"`
	CoinID              string      `json:"coinId"`
	Percentage          money.Money `json:"percentage"`
	DurationMinutes     int         `json:"durationMinutes"`
	StartTime           time.Time   `json:"startTime"`
	EndTime             time.Time   `json:"endTime"`
	CompletedPercentage money.Money `json:"completedPercentage"`
	IsActive            bool        `json:"isActive"`
	InitialAmount       money.Money `json:"initialAmount"`
	CurrentGainAmount   money.Money `json:"currentGainAmount"`
	CreatedAt           time.Time   `json:"createdAt"`
}
