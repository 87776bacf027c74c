package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/sim-exchange/internal/domain/models"
)

// TransactionStorage описывает методы для работы с историей операций.
type TransactionStorage interface {
	// CreateTransactionTx добавляет запись, записи никогда не меняются.
	CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error)
	// GetTransactionsByUserID возвращает последние операции пользователя, новые первыми.
	GetTransactionsByUserID(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionStorage {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error) {
	query := `INSERT INTO transactions (user_id, coin_id, coin_name, type, amount, price, total, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		t.UserID, t.CoinID, t.CoinName, string(t.Type), t.Amount, t.Price, t.Total, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}
	t.ID = id
	return id, nil
}

func (r *transactionRepository) GetTransactionsByUserID(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, coin_id, coin_name, type, amount, price, total, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var txType string
		if err := rows.Scan(&t.ID, &t.UserID, &t.CoinID, &t.CoinName, &txType, &t.Amount, &t.Price, &t.Total, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = models.TransactionType(txType)
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}
