package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/ledger"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/service"
)

// GrantRequest – начисление денег ("cash") или монеты (символ) пользователю.
type GrantRequest struct {
	UserID int64       `json:"userId" validate:"required,gt=0"`
	Asset  string      `json:"asset" validate:"required"`
	Amount money.Money `json:"amount"`
}

// CreatePumpRequest – запуск симулированного роста позиции.
type CreatePumpRequest struct {
	UserID          int64       `json:"userId" validate:"required,gt=0"`
	CoinID          string      `json:"coinId" validate:"required"`
	Percentage      money.Money `json:"percentage"`
	// не больше ledger.MaxPumpDurationMinutes
	DurationMinutes int         `json:"durationMinutes" validate:"max=5256000"`
}

type PumpsResponse struct {
	Pumps []*models.SimulatedPump `json:"pumps"`
}

type ProcessPumpsResponse struct {
	Processed int `json:"processed"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// GrantHandler обрабатывает POST /api/admin/grant.
func GrantHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GrantHandler"
		logger := log.With(slog.String("op", op))

		var req GrantRequest
		if msg, err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("bad grant request", slog.String("reason", msg), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		asset, err := ledger.ParseAsset(req.Asset)
		if err != nil {
			writeServiceError(w, logger, "bad grant request", err)
			return
		}

		p, err := ledgerService.GrantAsset(r.Context(), req.UserID, asset, req.Amount)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", req.UserID)), "grant failed", err)
			return
		}

		writeJSON(w, logger, PortfolioResponse{Message: "Asset granted successfully", Portfolio: p})
	}
}

// CreatePumpHandler обрабатывает POST /api/admin/pumps.
func CreatePumpHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreatePumpHandler"
		logger := log.With(slog.String("op", op))

		var req CreatePumpRequest
		if msg, err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("bad pump request", slog.String("reason", msg), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		pump, err := ledgerService.CreateSimulatedPump(r.Context(), req.UserID, req.CoinID, req.Percentage, req.DurationMinutes)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", req.UserID)), "failed to create pump", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, logger, pump)
	}
}

// ListPumpsHandler обрабатывает GET /api/admin/pumps/{userID}.
func ListPumpsHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListPumpsHandler"
		logger := log.With(slog.String("op", op))

		userID, err := userIDParam(r)
		if err != nil {
			logger.Warn("invalid userID parameter", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, "invalid userID")
			return
		}

		pumps, err := ledgerService.ListSimulatedPumps(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "failed to list pumps", err)
			return
		}
		if pumps == nil {
			pumps = []*models.SimulatedPump{}
		}

		writeJSON(w, logger, PumpsResponse{Pumps: pumps})
	}
}

// CancelPumpHandler обрабатывает DELETE /api/admin/pumps/{userID}.
func CancelPumpHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelPumpHandler"
		logger := log.With(slog.String("op", op))

		userID, err := userIDParam(r)
		if err != nil {
			logger.Warn("invalid userID parameter", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, "invalid userID")
			return
		}

		if err := ledgerService.CancelSimulatedPump(r.Context(), userID); err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "failed to cancel pump", err)
			return
		}

		writeJSON(w, logger, MessageResponse{Message: "Simulated pump cancelled"})
	}
}

// ProcessPumpsHandler обрабатывает POST /api/admin/pumps/process: ручной прогон всех активных пампов.
func ProcessPumpsHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProcessPumpsHandler"
		logger := log.With(slog.String("op", op))

		n, err := ledgerService.ProcessAllActivePumps(r.Context(), time.Now().UTC())
		if err != nil {
			writeServiceError(w, logger, "failed to process pumps", err)
			return
		}

		logger.Info("pumps processed", slog.Int("processed", n))
		writeJSON(w, logger, ProcessPumpsResponse{Processed: n})
	}
}

// DeleteUserHandler обрабатывает DELETE /api/admin/users/{userID}.
// Портфель, история и пампы удаляются каскадно.
func DeleteUserHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteUserHandler"
		logger := log.With(slog.String("op", op))

		userID, err := userIDParam(r)
		if err != nil {
			logger.Warn("invalid userID parameter", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, "invalid userID")
			return
		}

		if err := ledgerService.DeleteUser(r.Context(), userID); err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "failed to delete user", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
