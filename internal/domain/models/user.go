package models

import "time"

// User представляет пользователя. Ledger нужен только ID и флаг администратора.
type User struct {
	ID        int64
	Username  string
	PassHash  []byte
	IsAdmin   bool
	CreatedAt time.Time
}
