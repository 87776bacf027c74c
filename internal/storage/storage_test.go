package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userCols      = []string{"id", "username", "pass_hash", "is_admin", "created_at"}
	portfolioCols = []string{"user_id", "cash", "pump_gain_percent", "updated_at"}
	holdingCols   = []string{"coin_id", "amount", "average_price"}
	pumpCols      = []string{"id", "user_id", "coin_id", "percentage", "duration_minutes", "start_time", "end_time",
		"completed_percentage", "is_active", "initial_amount", "current_gain_amount", "created_at"}
)

const (
	selectPortfolioSQL = "SELECT user_id, cash, pump_gain_percent, updated_at FROM portfolios WHERE user_id = $1"
	selectHoldingsSQL  = "SELECT coin_id, amount, average_price FROM holdings WHERE user_id = $1 ORDER BY coin_id"
)

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(userCols).AddRow(int64(1), "alice", []byte("hash"), true, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, pass_hash, is_admin, created_at FROM users WHERE id = $1")).
		WithArgs(int64(1)).WillReturnRows(rows)

	user, err := repo.GetUserByID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsAdmin)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	// Эмулируем ситуацию, когда запрос возвращает 0 строк.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, pass_hash, is_admin, created_at FROM users WHERE username = $1")).
		WithArgs("ghost").WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByUsername(context.Background(), "ghost")
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, pass_hash, is_admin, created_at FROM users WHERE id = $1")).
		WithArgs(int64(3)).WillReturnError(errors.New("db error"))

	user, err := repo.GetUserByID(context.Background(), 3)
	assert.Error(t, err)
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (username, pass_hash, is_admin, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id, created_at")).
		WithArgs("bob", []byte("hashed"), false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	user, err := repo.CreateUserTx(ctx, tx, &models.User{Username: "bob", PassHash: []byte("hashed")})
	assert.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserTx_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	user, err := repo.CreateUserTx(context.Background(), tx, &models.User{Username: "bob", PassHash: []byte("hashed")})
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, storage.ErrUserExists))
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	query := regexp.QuoteMeta("DELETE FROM users WHERE id = $1")

	mock.ExpectExec(query).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteUser(context.Background(), 1))

	mock.ExpectExec(query).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.DeleteUser(context.Background(), 2), storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	query := regexp.QuoteMeta("UPDATE users SET pass_hash = $1, is_admin = TRUE WHERE id = $2")

	mock.ExpectExec(query).WithArgs([]byte("hash"), int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.PromoteAdmin(context.Background(), 3, []byte("hash")))

	mock.ExpectExec(query).WithArgs([]byte("hash"), int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.PromoteAdmin(context.Background(), 4, []byte("hash")), storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPortfolio_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(selectPortfolioSQL)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(portfolioCols).AddRow(int64(1), "500.00000000", "100.00000000", now))
	mock.ExpectQuery(regexp.QuoteMeta(selectHoldingsSQL)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(holdingCols).
			AddRow("bitcoin", "0.01000000", "50000.00000000").
			AddRow("ethereum", "2.00000000", "1500.00000000"))

	p, err := repo.GetPortfolio(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "500.00000000", p.Cash.String())
	assert.Equal(t, "100.00000000", p.PumpGainPercent.String())
	assert.Len(t, p.Holdings, 2)
	assert.Equal(t, "0.01000000", p.Holdings["bitcoin"].Amount.String())
	assert.Equal(t, "1500.00000000", p.Holdings["ethereum"].AveragePrice.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPortfolio_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta(selectPortfolioSQL)).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(portfolioCols))

	p, err := repo.GetPortfolio(context.Background(), 9)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, storage.ErrPortfolioNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockPortfolioTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectPortfolioSQL + " FOR UPDATE NOWAIT")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(portfolioCols).AddRow(int64(1), "10", "0", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(selectHoldingsSQL)).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(holdingCols))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	p, err := repo.LockPortfolioTx(context.Background(), tx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "10.00000000", p.Cash.String())
	assert.Empty(t, p.Holdings)
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockPortfolioTx_Conflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)

	mock.ExpectBegin()
	// 55P03 – lock_not_available
	mock.ExpectQuery(regexp.QuoteMeta(selectPortfolioSQL + " FOR UPDATE NOWAIT")).WithArgs(int64(1)).
		WillReturnError(&pq.Error{Code: "55P03", Message: "could not obtain lock on row"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	p, err := repo.LockPortfolioTx(context.Background(), tx, 1)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, storage.ErrStorageConflict))
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePortfolioTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO portfolios (user_id, cash, pump_gain_percent, updated_at) VALUES ($1, $2, 0, NOW())")).
		WithArgs(int64(5), "10000.00000000").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, repo.CreatePortfolioTx(context.Background(), tx, 5, money.FromInt(10000)))
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePortfolioTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)
	p := &models.Portfolio{
		UserID:          1,
		Cash:            money.MustParse("500"),
		PumpGainPercent: money.Zero,
		Holdings: map[string]models.Holding{
			"ethereum": {CoinID: "ethereum", Amount: money.MustParse("2"), AveragePrice: money.MustParse("1500")},
			"bitcoin":  {CoinID: "bitcoin", Amount: money.MustParse("0.01"), AveragePrice: money.MustParse("50000")},
		},
	}

	insert := regexp.QuoteMeta("INSERT INTO holdings (user_id, coin_id, amount, average_price) VALUES ($1, $2, $3, $4)")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE portfolios SET cash = $1, pump_gain_percent = $2, updated_at = NOW() WHERE user_id = $3")).
		WithArgs("500.00000000", "0.00000000", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM holdings WHERE user_id = $1")).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	// позиции пишутся в порядке coin_id
	mock.ExpectExec(insert).WithArgs(int64(1), "bitcoin", "0.01000000", "50000.00000000").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(int64(1), "ethereum", "2.00000000", "1500.00000000").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, repo.SavePortfolioTx(context.Background(), tx, p))
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePortfolioTx_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPortfolioRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE portfolios").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.SavePortfolioTx(context.Background(), tx, &models.Portfolio{UserID: 42})
	assert.True(t, errors.Is(err, storage.ErrPortfolioNotFound))
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransactionTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewTransactionRepository(db)
	now := time.Now()
	record := &models.Transaction{
		UserID:    1,
		CoinID:    "bitcoin",
		CoinName:  "Bitcoin",
		Type:      models.TransactionBuy,
		Amount:    money.MustParse("0.01"),
		Price:     money.MustParse("50000"),
		Total:     money.MustParse("500"),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions (user_id, coin_id, coin_name, type, amount, price, total, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`)).
		WithArgs(int64(1), "bitcoin", "Bitcoin", "buy", "0.01000000", "50000.00000000", "500.00000000", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	id, err := repo.CreateTransactionTx(context.Background(), tx, record)
	assert.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(11), record.ID)
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionsByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewTransactionRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "coin_id", "coin_name", "type", "amount", "price", "total", "created_at"}).
		AddRow(int64(2), int64(1), "bitcoin", "Bitcoin", "withdraw", "0.005", "0", "0", now).
		AddRow(int64(1), int64(1), "bitcoin", "Bitcoin", "buy", "0.01", "50000", "500", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, user_id, coin_id, coin_name, type, amount, price, total, created_at FROM transactions").
		WithArgs(int64(1), 50).WillReturnRows(rows)

	txs, err := repo.GetTransactionsByUserID(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TransactionWithdraw, txs[0].Type)
	assert.Equal(t, "500.00000000", txs[1].Total.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionsByUserID_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewTransactionRepository(db)
	mock.ExpectQuery("FROM transactions").WillReturnError(errors.New("query error"))

	txs, err := repo.GetTransactionsByUserID(context.Background(), 1, 10)
	assert.Error(t, err)
	assert.Nil(t, txs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPumpRepository_CreateAndUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPumpRepository(db)
	ctx := context.Background()
	now := time.Now()
	pump := &models.SimulatedPump{
		UserID:              1,
		CoinID:              "bitcoin",
		Percentage:          money.FromInt(100),
		DurationMinutes:     60,
		StartTime:           now,
		EndTime:             now.Add(time.Hour),
		CompletedPercentage: money.Zero,
		IsActive:            true,
		InitialAmount:       money.MustParse("0.01"),
		CurrentGainAmount:   money.Zero,
		CreatedAt:           now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pumps").
		WithArgs(int64(1), "bitcoin", "100.00000000", 60, now, now.Add(time.Hour), "0.00000000", true, "0.01000000", "0.00000000", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pumps SET completed_percentage = $1, is_active = $2, current_gain_amount = $3 WHERE id = $4")).
		WithArgs("50.00000000", true, "0.00500000", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	id, err := repo.CreatePumpTx(ctx, tx, pump)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	pump.CompletedPercentage = money.FromInt(50)
	pump.CurrentGainAmount = money.MustParse("0.005")
	assert.NoError(t, repo.UpdatePumpTx(ctx, tx, pump))
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPumpRepository_UpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPumpRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE pumps").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.UpdatePumpTx(context.Background(), tx, &models.SimulatedPump{ID: 99})
	assert.True(t, errors.Is(err, storage.ErrPumpNotFound))
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPumpRepository_Queries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewPumpRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM pumps WHERE is_active = TRUE ORDER BY user_id")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := repo.ListActivePumpUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM pumps WHERE user_id = \\$1 AND is_active = TRUE ORDER BY id").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(pumpCols).
			AddRow(int64(3), int64(1), "bitcoin", "100", 60, now, now.Add(time.Hour), "25", true, "0.01", "0.0025", now))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	pumps, err := repo.GetActivePumpsByUserIDTx(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, pumps, 1)
	assert.Equal(t, "25.00000000", pumps[0].CompletedPercentage.String())
	assert.Equal(t, 60, pumps[0].DurationMinutes)
	assert.True(t, pumps[0].IsActive)
	assert.NoError(t, tx.Commit())

	mock.ExpectQuery("FROM pumps WHERE user_id = \\$1 ORDER BY id DESC").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(pumpCols))
	all, err := repo.GetPumpsByUserID(ctx, 1)
	assert.NoError(t, err)
	assert.Empty(t, all)

	assert.NoError(t, mock.ExpectationsWereMet())
}
