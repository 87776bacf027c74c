package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linemk/sim-exchange/internal/ledger"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/market"
	"github.com/linemk/sim-exchange/internal/service"
	"github.com/linemk/sim-exchange/internal/storage"
)

var validate = validator.New()

// ErrorResponse – тело ответа при ошибке.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// statusFor сопоставляет ошибку бизнес-логики с HTTP-статусом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidSide),
		errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrUnknownAsset):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientQuantity),
		errors.Is(err, ledger.ErrNoSuchHolding),
		errors.Is(err, ledger.ErrNoEligibleHolding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrPortfolioNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, market.ErrPriceNotFound),
		errors.Is(err, service.ErrNoActivePump):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStorageConflict),
		errors.Is(err, storage.ErrUserExists),
		errors.Is(err, service.ErrPumpAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// messageFor отдаёт клиенту текст ошибки, не раскрывая внутренние сбои.
func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	for _, target := range []error{
		ledger.ErrInvalidAmount,
		ledger.ErrInvalidSide,
		ledger.ErrInvalidDuration,
		ledger.ErrUnknownAsset,
		ledger.ErrInsufficientFunds,
		ledger.ErrInsufficientQuantity,
		ledger.ErrNoSuchHolding,
		ledger.ErrNoEligibleHolding,
		storage.ErrPortfolioNotFound,
		storage.ErrUserNotFound,
		market.ErrPriceNotFound,
		service.ErrNoActivePump,
		storage.ErrStorageConflict,
		storage.ErrUserExists,
		service.ErrPumpAlreadyActive,
		service.ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return http.StatusText(status)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Errors: msg})
}

// writeServiceError пишет ответ по ошибке сервиса: отказы на Warn, сбои на Error.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, slog.Any("error", err))
	} else {
		logger.Warn(msg, slog.Any("error", err), slog.Int("status", status))
	}
	writeError(w, status, messageFor(err, status))
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// decodeAndValidate разбирает JSON-тело и проверяет теги validate.
func decodeAndValidate(r *http.Request, dst interface{}) (string, error) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, money.ErrInvalid) {
			return ledger.ErrInvalidAmount.Error(), err
		}
		return "invalid request", err
	}
	if err := validate.Struct(dst); err != nil {
		return "validation error", err
	}
	return "", nil
}

// userIDParam читает положительный {userID} из пути.
func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
