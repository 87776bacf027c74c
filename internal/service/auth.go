package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	security "github.com/linemk/sim-exchange/internal/jwt-new"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type AuthService struct {
	log           *slog.Logger
	db            *sql.DB
	userRepo      storage.UserStorage
	portfolioRepo storage.PortfolioStorage
	tokenTTL      time.Duration
	initialCash   money.Money
}

func NewAuthService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	portfolioRepo storage.PortfolioStorage,
	tokenTTL time.Duration,
	initialCash money.Money,
) *AuthService {
	return &AuthService{
		log:           log,
		db:            db,
		userRepo:      userRepo,
		portfolioRepo: portfolioRepo,
		tokenTTL:      tokenTTL,
		initialCash:   initialCash,
	}
}

// Login осуществляет аутентификацию пользователя.
// Если пользователь не найден, он создаётся вместе с портфелем в одной транзакции
// (пароль хэшируется через bcrypt, который автоматически добавляет соль).
// Саморегистрация никогда не выдаёт прав администратора, см. EnsureAdmin.
// Если пользователь найден, введённый пароль сравнивается с сохранённым хэшем.
// После успешной проверки генерируется JWT-токен.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		logger.Info("user not found, registering")
		user, err = a.register(ctx, logger, username, password, false)
		if errors.Is(err, storage.ErrUserExists) {
			// параллельный вход с тем же именем успел зарегистрировать пользователя
			logger.Info("user registered concurrently, checking password")
			user, err = a.authenticate(ctx, logger, username, password)
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	case err != nil:
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	default:
		if err := checkPassword(logger, user, password); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID), slog.Bool("isAdmin", user.IsAdmin))
	return token, nil
}

// EnsureAdmin заводит администратора с паролем из окружения. Если имя уже занято,
// учётная запись получает флаг администратора и новый пароль: тот, кто успел
// зарегистрироваться под этим именем, теряет к ней доступ.
func (a *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	const op = "service.AuthService.EnsureAdmin"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	if username == "" || password == "" {
		return fmt.Errorf("%s: admin username and password are required", op)
	}

	user, err := a.userRepo.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		_, regErr := a.register(ctx, logger, username, password, true)
		if regErr == nil {
			logger.Info("admin account created")
			return nil
		}
		if !errors.Is(regErr, storage.ErrUserExists) {
			return fmt.Errorf("%s: %w", op, regErr)
		}
		user, err = a.userRepo.GetUserByUsername(ctx, username)
	}
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return fmt.Errorf("%s: failed to hash password: %w", op, err)
	}
	if err := a.userRepo.PromoteAdmin(ctx, user.ID, passHash); err != nil {
		logger.Error("failed to promote admin", slog.Any("error", err))
		return fmt.Errorf("%s: failed to promote admin: %w", op, err)
	}

	logger.Info("admin account updated", slog.Int64("userID", user.ID))
	return nil
}

func (a *AuthService) authenticate(ctx context.Context, logger *slog.Logger, username, password string) (*models.User, error) {
	user, err := a.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := checkPassword(logger, user, password); err != nil {
		return nil, err
	}
	return user, nil
}

func checkPassword(logger *slog.Logger, user *models.User, password string) error {
	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return ErrInvalidCredentials
	}
	return nil
}

// register создаёт пользователя и его портфель с начальным балансом.
func (a *AuthService) register(ctx context.Context, logger *slog.Logger, username, password string, isAdmin bool) (*models.User, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &models.User{
		Username: username,
		PassHash: passHash,
		IsAdmin:  isAdmin,
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	user, err := a.userRepo.CreateUserTx(ctx, tx, newUser)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("user already exists", slog.Any("error", err))
		} else {
			logger.Error("failed to create user", slog.Any("error", err))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := a.portfolioRepo.CreatePortfolioTx(ctx, tx, user.ID, a.initialCash); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create portfolio", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID), slog.String("cash", a.initialCash.String()))
	return user, nil
}
