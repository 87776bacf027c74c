package models

import (
	"time"

	"github.com/linemk/sim-exchange/internal/lib/money"
)

type TransactionType string

const (
	TransactionBuy      TransactionType = "buy"
	TransactionSell     TransactionType = "sell"
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

// Transaction – неизменяемая запись о движении денег или монет.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	CoinID    string          `json:"coinId"`
	CoinName  string          `json:"coinName"`
	Type      TransactionType `json:"type"`
	Amount    money.Money     `json:"amount"`
	Price     money.Money     `json:"price"`
	Total     money.Money     `json:"total"`
	CreatedAt time.Time       `json:"timestamp"`
}
