package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/ledger"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/market"
	"github.com/linemk/sim-exchange/internal/metrics"
	"github.com/linemk/sim-exchange/internal/storage"
)

var (
	ErrNoActivePump      = errors.New("no active simulated pump")
	ErrPumpAlreadyActive = errors.New("simulated pump already active for this coin")
)

const (
	DefaultTransactionsLimit = 50
	MaxTransactionsLimit     = 500
)

// LedgerService – единственная точка входа для изменения портфелей.
// Все изменения одного пользователя выполняются строго по очереди.
type LedgerService interface {
	GetPortfolio(ctx context.Context, userID int64) (*PortfolioView, error)
	GetTransactions(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)
	Trade(ctx context.Context, userID int64, coinID string, side ledger.Side, quantity money.Money) (*models.Portfolio, error)
	Withdraw(ctx context.Context, userID int64, coinID string, quantity money.Money) (*models.Portfolio, error)
	GrantAsset(ctx context.Context, userID int64, asset ledger.Asset, amount money.Money) (*models.Portfolio, error)
	CreateSimulatedPump(ctx context.Context, userID int64, coinID string, percentage money.Money, durationMinutes int) (*models.SimulatedPump, error)
	CancelSimulatedPump(ctx context.Context, userID int64) error
	ListSimulatedPumps(ctx context.Context, userID int64) ([]*models.SimulatedPump, error)
	ProcessAllActivePumps(ctx context.Context, now time.Time) (int, error)
	DeleteUser(ctx context.Context, userID int64) error
}

type ledgerService struct {
	log           *slog.Logger
	db            *sql.DB
	portfolioRepo storage.PortfolioStorage
	txRepo        storage.TransactionStorage
	pumpRepo      storage.PumpStorage
	userRepo      storage.UserStorage
	prices        market.PriceSource
	locks         userLocks
	now           func() time.Time
}

type Option func(*ledgerService)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *ledgerService) {
		s.now = now
	}
}

func NewLedgerService(
	log *slog.Logger,
	db *sql.DB,
	portfolioRepo storage.PortfolioStorage,
	txRepo storage.TransactionStorage,
	pumpRepo storage.PumpStorage,
	userRepo storage.UserStorage,
	prices market.PriceSource,
	opts ...Option,
) LedgerService {
	s := &ledgerService{
		log:           log,
		db:            db,
		portfolioRepo: portfolioRepo,
		txRepo:        txRepo,
		pumpRepo:      pumpRepo,
		userRepo:      userRepo,
		prices:        prices,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutation получает заблокированный портфель с уже продвинутыми пампами и
// список пампов, оставшихся активными. Возвращает новое состояние портфеля
// (nil, если портфель не менялся) и запись истории (nil, если деньги не двигались).
type mutation func(tx *sql.Tx, p *models.Portfolio, active []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error)

func noMutation(*sql.Tx, *models.Portfolio, []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
	return nil, nil, nil
}

// withPortfolio выполняет fn атомарно: блокировка пользователя, транзакция БД,
// FOR UPDATE NOWAIT на портфель, расчёт пампов, fn, запись, коммит.
// При любой ошибке транзакция откатывается и сохранённый портфель не меняется.
// Возвращает итоговый портфель и число продвинутых пампов.
func (s *ledgerService) withPortfolio(ctx context.Context, op string, logger *slog.Logger, userID int64, now time.Time, fn mutation) (*models.Portfolio, int, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	p, err := s.portfolioRepo.LockPortfolioTx(ctx, tx, userID)
	if err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrStorageConflict) {
			metrics.RecordStorageConflict()
			logger.Warn("portfolio is locked", slog.Any("error", err))
		} else {
			logger.Error("failed to lock portfolio", slog.Any("error", err))
		}
		return nil, 0, fmt.Errorf("%s: failed to lock portfolio: %w", op, err)
	}

	ticks, active, err := s.settlePumpsTx(ctx, tx, p, now)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to settle pumps", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: failed to settle pumps: %w", op, err)
	}

	updated, record, err := fn(tx, p, active)
	if err != nil {
		s.rollback(tx, logger)
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if updated == nil {
		updated = p
	}

	if updated != p || len(ticks) > 0 {
		if err := s.portfolioRepo.SavePortfolioTx(ctx, tx, updated); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to save portfolio", slog.Any("error", err))
			return nil, 0, fmt.Errorf("%s: failed to save portfolio: %w", op, err)
		}
	}

	if record != nil {
		if _, err := s.txRepo.CreateTransactionTx(ctx, tx, record); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to record transaction", slog.Any("error", err))
			return nil, 0, fmt.Errorf("%s: failed to record transaction: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	for _, res := range ticks {
		metrics.RecordPumpTick(res.String())
		if res == ledger.TickCompleted {
			metrics.RecordPumpEvent("completed")
		}
	}
	return updated, len(ticks), nil
}

// settlePumpsTx продвигает активные пампы пользователя к моменту now.
// Возвращает результаты изменивших состояние тиков и пампы, оставшиеся активными.
func (s *ledgerService) settlePumpsTx(ctx context.Context, tx *sql.Tx, p *models.Portfolio, now time.Time) ([]ledger.TickResult, []*models.SimulatedPump, error) {
	pumps, err := s.pumpRepo.GetActivePumpsByUserIDTx(ctx, tx, p.UserID)
	if err != nil {
		return nil, nil, err
	}

	var ticks []ledger.TickResult
	active := make([]*models.SimulatedPump, 0, len(pumps))
	for _, pump := range pumps {
		res := ledger.TickPump(pump, p, now)
		if res != ledger.TickNoop {
			if err := s.pumpRepo.UpdatePumpTx(ctx, tx, pump); err != nil {
				return nil, nil, fmt.Errorf("pump %d: %w", pump.ID, err)
			}
			ticks = append(ticks, res)
		}
		if pump.IsActive {
			active = append(active, pump)
		}
	}
	return ticks, active, nil
}

func (s *ledgerService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

// isRejection отличает отказ по бизнес-правилам от сбоя инфраструктуры.
func isRejection(err error) bool {
	for _, target := range []error{
		ledger.ErrInvalidAmount,
		ledger.ErrInvalidSide,
		ledger.ErrInvalidDuration,
		ledger.ErrInsufficientFunds,
		ledger.ErrInsufficientQuantity,
		ledger.ErrNoSuchHolding,
		ledger.ErrNoEligibleHolding,
		ledger.ErrUnknownAsset,
		market.ErrPriceNotFound,
		storage.ErrPortfolioNotFound,
		storage.ErrStorageConflict,
		ErrNoActivePump,
		ErrPumpAlreadyActive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case isRejection(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

func (s *ledgerService) logFailure(logger *slog.Logger, msg string, err error) {
	if isRejection(err) {
		logger.Warn(msg, slog.Any("error", err))
		return
	}
	logger.Error(msg, slog.Any("error", err))
}

// Trade покупает или продаёт монету по текущей рыночной цене.
// Цена запрашивается до блокировки: внутри изменения сетевых вызовов нет.
func (s *ledgerService) Trade(ctx context.Context, userID int64, coinID string, side ledger.Side, quantity money.Money) (*models.Portfolio, error) {
	const op = "service.LedgerService.Trade"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("coinID", coinID),
		slog.String("side", string(side)),
		slog.String("quantity", quantity.String()),
	)
	logger.Info("starting trade")

	p, err := s.trade(ctx, op, logger, userID, coinID, side, quantity)
	metrics.RecordTrade(string(side), resultOf(err))
	if err != nil {
		s.logFailure(logger, "trade failed", err)
		return nil, err
	}

	logger.Info("trade completed", slog.String("cash", p.Cash.String()))
	return p, nil
}

func (s *ledgerService) trade(ctx context.Context, op string, logger *slog.Logger, userID int64, coinID string, side ledger.Side, quantity money.Money) (*models.Portfolio, error) {
	if _, err := ledger.ParseSide(string(side)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%s: %w: quantity must be positive", op, ledger.ErrInvalidAmount)
	}

	price, err := s.prices.GetCurrentPrice(ctx, coinID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get price: %w", op, err)
	}

	now := s.now()
	p, _, err := s.withPortfolio(ctx, op, logger, userID, now,
		func(_ *sql.Tx, p *models.Portfolio, _ []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
			return ledger.ExecuteTrade(p, coinID, side, quantity, price, now)
		})
	return p, err
}

// Withdraw выводит монеты из симуляции без зачисления денег.
func (s *ledgerService) Withdraw(ctx context.Context, userID int64, coinID string, quantity money.Money) (*models.Portfolio, error) {
	const op = "service.LedgerService.Withdraw"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("coinID", coinID),
		slog.String("quantity", quantity.String()),
	)
	logger.Info("starting withdrawal")

	now := s.now()
	p, _, err := s.withPortfolio(ctx, op, logger, userID, now,
		func(_ *sql.Tx, p *models.Portfolio, _ []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
			return ledger.Withdraw(p, coinID, quantity, now)
		})
	metrics.RecordWithdrawal(resultOf(err))
	if err != nil {
		s.logFailure(logger, "withdrawal failed", err)
		return nil, err
	}

	logger.Info("withdrawal completed")
	return p, nil
}

// GrantAsset – административное начисление денег или монет.
func (s *ledgerService) GrantAsset(ctx context.Context, userID int64, asset ledger.Asset, amount money.Money) (*models.Portfolio, error) {
	const op = "service.LedgerService.GrantAsset"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("asset", string(asset)),
		slog.String("amount", amount.String()),
	)
	logger.Info("granting asset")

	now := s.now()
	p, _, err := s.withPortfolio(ctx, op, logger, userID, now,
		func(_ *sql.Tx, p *models.Portfolio, _ []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
			return ledger.Grant(p, asset, amount, now)
		})
	if err != nil {
		s.logFailure(logger, "grant failed", err)
		return nil, err
	}

	metrics.RecordGrant(string(asset))
	logger.Info("asset granted")
	return p, nil
}

// CreateSimulatedPump планирует памп по монете, которой пользователь уже владеет.
func (s *ledgerService) CreateSimulatedPump(ctx context.Context, userID int64, coinID string, percentage money.Money, durationMinutes int) (*models.SimulatedPump, error) {
	const op = "service.LedgerService.CreateSimulatedPump"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("coinID", coinID),
		slog.String("percentage", percentage.String()),
		slog.Int("durationMinutes", durationMinutes),
	)
	logger.Info("creating simulated pump")

	var created *models.SimulatedPump
	now := s.now()
	_, _, err := s.withPortfolio(ctx, op, logger, userID, now,
		func(tx *sql.Tx, p *models.Portfolio, active []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
			for _, other := range active {
				if other.CoinID == coinID {
					return nil, nil, fmt.Errorf("%w: pump %d", ErrPumpAlreadyActive, other.ID)
				}
			}
			pump, err := ledger.NewSimulatedPump(p, coinID, percentage, durationMinutes, now)
			if err != nil {
				return nil, nil, err
			}
			if _, err := s.pumpRepo.CreatePumpTx(ctx, tx, pump); err != nil {
				return nil, nil, fmt.Errorf("failed to create pump: %w", err)
			}
			created = pump
			return nil, nil, nil
		})
	if err != nil {
		s.logFailure(logger, "failed to create simulated pump", err)
		return nil, err
	}

	metrics.RecordPumpEvent("created")
	logger.Info("simulated pump created", slog.Int64("pumpID", created.ID), slog.Time("endTime", created.EndTime))
	return created, nil
}

// CancelSimulatedPump останавливает все активные пампы пользователя.
// Перед отменой пампы продвигаются до текущего момента, начисленное остаётся.
func (s *ledgerService) CancelSimulatedPump(ctx context.Context, userID int64) error {
	const op = "service.LedgerService.CancelSimulatedPump"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("cancelling simulated pumps")

	cancelled := 0
	_, _, err := s.withPortfolio(ctx, op, logger, userID, s.now(),
		func(tx *sql.Tx, _ *models.Portfolio, active []*models.SimulatedPump) (*models.Portfolio, *models.Transaction, error) {
			if len(active) == 0 {
				return nil, nil, ErrNoActivePump
			}
			for _, pump := range active {
				if !ledger.CancelPump(pump) {
					continue
				}
				if err := s.pumpRepo.UpdatePumpTx(ctx, tx, pump); err != nil {
					return nil, nil, fmt.Errorf("failed to cancel pump %d: %w", pump.ID, err)
				}
				cancelled++
			}
			return nil, nil, nil
		})
	if err != nil {
		s.logFailure(logger, "failed to cancel simulated pumps", err)
		return err
	}

	for i := 0; i < cancelled; i++ {
		metrics.RecordPumpEvent("cancelled")
	}
	logger.Info("simulated pumps cancelled", slog.Int("count", cancelled))
	return nil
}

// ListSimulatedPumps возвращает все пампы пользователя, новые первыми,
// предварительно продвинув активные.
func (s *ledgerService) ListSimulatedPumps(ctx context.Context, userID int64) ([]*models.SimulatedPump, error) {
	const op = "service.LedgerService.ListSimulatedPumps"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, _, err := s.withPortfolio(ctx, op, logger, userID, s.now(), noMutation); err != nil {
		s.logFailure(logger, "failed to settle pumps", err)
		return nil, err
	}

	pumps, err := s.pumpRepo.GetPumpsByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to list pumps", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list pumps: %w", op, err)
	}
	return pumps, nil
}

// ProcessAllActivePumps продвигает пампы всех пользователей к моменту now.
// Повторный вызов с тем же now ничего не начисляет.
// Заблокированные или удалённые портфели пропускаются до следующего вызова.
func (s *ledgerService) ProcessAllActivePumps(ctx context.Context, now time.Time) (int, error) {
	const op = "service.LedgerService.ProcessAllActivePumps"
	logger := s.log.With(slog.String("op", op), slog.Time("now", now))

	userIDs, err := s.pumpRepo.ListActivePumpUserIDs(ctx)
	if err != nil {
		logger.Error("failed to list users with active pumps", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to list users with active pumps: %w", op, err)
	}

	total := 0
	for _, userID := range userIDs {
		userLogger := logger.With(slog.Int64("userID", userID))
		_, ticked, err := s.withPortfolio(ctx, op, userLogger, userID, now, noMutation)
		if err != nil {
			if errors.Is(err, storage.ErrStorageConflict) || errors.Is(err, storage.ErrPortfolioNotFound) {
				userLogger.Warn("skipping user", slog.Any("error", err))
				continue
			}
			return total, err
		}
		total += ticked
	}

	logger.Info("active pumps processed", slog.Int("users", len(userIDs)), slog.Int("ticked", total))
	return total, nil
}

// GetTransactions возвращает историю операций, новые первыми.
func (s *ledgerService) GetTransactions(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	const op = "service.LedgerService.GetTransactions"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}

	txs, err := s.txRepo.GetTransactionsByUserID(ctx, userID, limit)
	if err != nil {
		logger.Error("failed to get transactions", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get transactions: %w", op, err)
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return txs, nil
}

// DeleteUser удаляет пользователя вместе с портфелем, историей и пампами.
func (s *ledgerService) DeleteUser(ctx context.Context, userID int64) error {
	const op = "service.LedgerService.DeleteUser"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.userRepo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
		} else {
			logger.Error("failed to delete user", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user deleted")
	return nil
}
