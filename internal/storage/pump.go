package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/sim-exchange/internal/domain/models"
)

// PumpStorage описывает хранение симулированных пампов.
type PumpStorage interface {
	CreatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) (int64, error)
	GetActivePumpsByUserIDTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.SimulatedPump, error)
	UpdatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) error
	// ListActivePumpUserIDs возвращает пользователей, у которых есть активные пампы.
	ListActivePumpUserIDs(ctx context.Context) ([]int64, error)
	GetPumpsByUserID(ctx context.Context, userID int64) ([]*models.SimulatedPump, error)
}

type pumpRepository struct {
	db *sql.DB
}

func NewPumpRepository(db *sql.DB) PumpStorage {
	return &pumpRepository{db: db}
}

const pumpColumns = `id, user_id, coin_id, percentage, duration_minutes, start_time, end_time,
		completed_percentage, is_active, initial_amount, current_gain_amount, created_at`

func (r *pumpRepository) CreatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) (int64, error) {
	query := `INSERT INTO pumps (user_id, coin_id, percentage, duration_minutes, start_time, end_time,
	          completed_percentage, is_active, initial_amount, current_gain_amount, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		p.UserID, p.CoinID, p.Percentage, p.DurationMinutes, p.StartTime, p.EndTime,
		p.CompletedPercentage, p.IsActive, p.InitialAmount, p.CurrentGainAmount, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create pump: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *pumpRepository) GetActivePumpsByUserIDTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.SimulatedPump, error) {
	query := "SELECT " + pumpColumns + " FROM pumps WHERE user_id = $1 AND is_active = TRUE ORDER BY id"
	return queryPumps(ctx, tx, query, userID)
}

func (r *pumpRepository) GetPumpsByUserID(ctx context.Context, userID int64) ([]*models.SimulatedPump, error) {
	query := "SELECT " + pumpColumns + " FROM pumps WHERE user_id = $1 ORDER BY id DESC"
	return queryPumps(ctx, r.db, query, userID)
}

func queryPumps(ctx context.Context, q queryer, query string, args ...interface{}) ([]*models.SimulatedPump, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pumps: %w", err)
	}
	defer rows.Close()

	var pumps []*models.SimulatedPump
	for rows.Next() {
		p := &models.SimulatedPump{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.CoinID, &p.Percentage, &p.DurationMinutes, &p.StartTime, &p.EndTime,
			&p.CompletedPercentage, &p.IsActive, &p.InitialAmount, &p.CurrentGainAmount, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pump: %w", err)
		}
		pumps = append(pumps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pumps, nil
}

func (r *pumpRepository) UpdatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE pumps SET completed_percentage = $1, is_active = $2, current_gain_amount = $3 WHERE id = $4",
		p.CompletedPercentage, p.IsActive, p.CurrentGainAmount, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pump: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPumpNotFound
	}
	return nil
}

func (r *pumpRepository) ListActivePumpUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM pumps WHERE is_active = TRUE ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query active pumps: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
