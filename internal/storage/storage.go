package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrPumpNotFound      = errors.New("pump not found")
	// ErrStorageConflict – строка портфеля заблокирована другой транзакцией.
	ErrStorageConflict = errors.New("portfolio is locked by a concurrent operation, please try again")
)

// queryer – общее подмножество *sql.DB и *sql.Tx для чтения.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// postgres error codes
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
