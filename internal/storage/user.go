package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/sim-exchange/internal/domain/models"
)

type UserStorage interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUserTx(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	// PromoteAdmin выставляет is_admin и заменяет хэш пароля.
	PromoteAdmin(ctx context.Context, id int64, passHash []byte) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

const userColumns = "id, username, pass_hash, is_admin, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.PassHash, &user.IsAdmin, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// получение уже существующего пользователя
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// CreateUserTx создаёт пользователя в транзакции, чтобы портфель появился вместе с ним.
func (r *userRepository) CreateUserTx(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error) {
	err := tx.QueryRowContext(ctx,
		"INSERT INTO users (username, pass_hash, is_admin, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id, created_at",
		user.Username, user.PassHash, user.IsAdmin,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, user.Username)
		}
		return nil, err
	}
	return user, nil
}

// DeleteUser удаляет пользователя, портфель, позиции, историю и пампы удаляются каскадом.
func (r *userRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) PromoteAdmin(ctx context.Context, id int64, passHash []byte) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET pass_hash = $1, is_admin = TRUE WHERE id = $2", passHash, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
