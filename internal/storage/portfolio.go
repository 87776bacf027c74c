package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
)

// PortfolioStorage описывает работу с портфелями и позициями.
type PortfolioStorage interface {
	// CreatePortfolioTx создаёт портфель с начальным балансом.
	CreatePortfolioTx(ctx context.Context, tx *sql.Tx, userID int64, cash money.Money) error
	// GetPortfolio читает портфель без блокировки.
	GetPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error)
	// LockPortfolioTx читает портфель с блокировкой строки до конца транзакции.
	LockPortfolioTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Portfolio, error)
	// SavePortfolioTx записывает баланс и полностью перезаписывает позиции.
	SavePortfolioTx(ctx context.Context, tx *sql.Tx, p *models.Portfolio) error
}

type portfolioRepository struct {
	db *sql.DB
}

func NewPortfolioRepository(db *sql.DB) PortfolioStorage {
	return &portfolioRepository{db: db}
}

const (
	selectPortfolio = "SELECT user_id, cash, pump_gain_percent, updated_at FROM portfolios WHERE user_id = $1"
	selectHoldings  = "SELECT coin_id, amount, average_price FROM holdings WHERE user_id = $1 ORDER BY coin_id"
)

func (r *portfolioRepository) CreatePortfolioTx(ctx context.Context, tx *sql.Tx, userID int64, cash money.Money) error {
	query := `INSERT INTO portfolios (user_id, cash, pump_gain_percent, updated_at)
	          VALUES ($1, $2, 0, NOW())`
	if _, err := tx.ExecContext(ctx, query, userID, cash); err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

func (r *portfolioRepository) GetPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	return loadPortfolio(ctx, r.db, selectPortfolio, userID)
}

// LockPortfolioTx берёт строку портфеля через FOR UPDATE NOWAIT: если её держит
// другая транзакция, сразу возвращается ErrStorageConflict.
func (r *portfolioRepository) LockPortfolioTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Portfolio, error) {
	p, err := loadPortfolio(ctx, tx, selectPortfolio+" FOR UPDATE NOWAIT", userID)
	if err != nil {
		if pqCode(err) == codeLockNotAvailable {
			return nil, fmt.Errorf("%w: %v", ErrStorageConflict, err)
		}
		return nil, err
	}
	return p, nil
}

func loadPortfolio(ctx context.Context, q queryer, query string, userID int64) (*models.Portfolio, error) {
	p := &models.Portfolio{Holdings: make(map[string]models.Holding)}
	row := q.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&p.UserID, &p.Cash, &p.PumpGainPercent, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, selectHoldings, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.CoinID, &h.Amount, &h.AveragePrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		p.Holdings[h.CoinID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *portfolioRepository) SavePortfolioTx(ctx context.Context, tx *sql.Tx, p *models.Portfolio) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE portfolios SET cash = $1, pump_gain_percent = $2, updated_at = NOW() WHERE user_id = $3",
		p.Cash, p.PumpGainPercent, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPortfolioNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM holdings WHERE user_id = $1", p.UserID); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}
	// нулевые позиции не пишутся: в таблице CHECK (amount > 0)
	for _, coinID := range p.CoinIDs() {
		h := p.Holdings[coinID]
		if !h.Amount.IsPositive() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO holdings (user_id, coin_id, amount, average_price) VALUES ($1, $2, $3, $4)",
			p.UserID, coinID, h.Amount, h.AveragePrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", coinID, err)
		}
	}
	return nil
}
