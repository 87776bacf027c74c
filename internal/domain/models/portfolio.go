package models

import (
	"sort"
	"time"

	"github.com/linemk/sim-exchange/internal/lib/money"
)

// Holding – позиция пользователя в одной монете.
// Amount всегда > 0: нулевые позиции не хранятся.
type Holding struct {
	CoinID       string      `json:"coinId"`
	Amount       money.Money `json:"amount"`
	AveragePrice money.Money `json:"averagePrice"`
}

// Portfolio – денежный баланс и позиции пользователя (1:1 с User).
type Portfolio struct {
	UserID int64       `json:"userId"`
	Cash   money.Money `json:"cash"`
	// PumpGainPercent – накопленный процент завершённых пампов, только для отображения.
	PumpGainPercent money.Money        `json:"pumpGainPercent"`
	Holdings        map[string]Holding `json:"holdings"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// Clone возвращает копию портфеля с отдельной картой позиций.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Holdings = make(map[string]Holding, len(p.Holdings))
	for id, h := range p.Holdings {
		c.Holdings[id] = h
	}
	return &c
}

// Holding возвращает позицию по монете.
func (p *Portfolio) Holding(coinID string) (Holding, bool) {
	h, ok := p.Holdings[coinID]
	return h, ok
}

// SetHolding сохраняет позицию, а при нулевом количестве удаляет её.
func (p *Portfolio) SetHolding(h Holding) {
	if p.Holdings == nil {
		p.Holdings = make(map[string]Holding)
	}
	if !h.Amount.IsPositive() {
		delete(p.Holdings, h.CoinID)
		return
	}
	p.Holdings[h.CoinID] = h
}

// CoinIDs возвращает идентификаторы монет в отсортированном порядке.
func (p *Portfolio) CoinIDs() []string {
	ids := make([]string, 0, len(p.Holdings))
	for id := range p.Holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
