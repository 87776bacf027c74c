package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sim-exchange/internal/ledger"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/service"
)

// TradeRequest – входной JSON для покупки или продажи монеты.
// Quantity принимается строкой или числом.
type TradeRequest struct {
	CoinID   string      `json:"coinId" validate:"required"`
	Side     string      `json:"side" validate:"required"`
	Quantity money.Money `json:"quantity"`
}

// WithdrawRequest – входной JSON для вывода монеты из портфеля.
type WithdrawRequest struct {
	CoinID   string      `json:"coinId" validate:"required"`
	Quantity money.Money `json:"quantity"`
}

// PortfolioResponse – портфель после успешного изменения.
type PortfolioResponse struct {
	Message   string            `json:"message"`
	Portfolio *models.Portfolio `json:"portfolio"`
}

// TradeHandler обрабатывает POST /api/trade.
func TradeHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TradeHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req TradeRequest
		if msg, err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("bad trade request", slog.String("reason", msg), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		side, err := ledger.ParseSide(req.Side)
		if err != nil {
			writeServiceError(w, logger, "bad trade request", err)
			return
		}

		p, err := ledgerService.Trade(r.Context(), userID, req.CoinID, side, req.Quantity)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "trade failed", err)
			return
		}

		writeJSON(w, logger, PortfolioResponse{Message: "Trade executed successfully", Portfolio: p})
	}
}

// WithdrawHandler обрабатывает POST /api/withdraw.
func WithdrawHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WithdrawHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req WithdrawRequest
		if msg, err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("bad withdraw request", slog.String("reason", msg), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		p, err := ledgerService.Withdraw(r.Context(), userID, req.CoinID, req.Quantity)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "withdraw failed", err)
			return
		}

		writeJSON(w, logger, PortfolioResponse{Message: "Withdrawal completed successfully", Portfolio: p})
	}
}
