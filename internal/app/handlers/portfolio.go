package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sim-exchange/internal/service"
)

// PortfolioHandler обрабатывает GET /api/portfolio.
func PortfolioHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PortfolioHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		view, err := ledgerService.GetPortfolio(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "failed to get portfolio", err)
			return
		}

		writeJSON(w, logger, view)
	}
}

// TransactionsResponse – история операций, новые записи первыми.
type TransactionsResponse struct {
	Transactions []*models.Transaction `json:"transactions"`
}

// TransactionsHandler обрабатывает GET /api/transactions?limit=N.
func TransactionsHandler(log *slog.Logger, ledgerService service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TransactionsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				logger.Warn("invalid limit", slog.String("limit", raw))
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		txs, err := ledgerService.GetTransactions(r.Context(), userID, limit)
		if err != nil {
			writeServiceError(w, logger.With(slog.Int64("userID", userID)), "failed to get transactions", err)
			return
		}
		if txs == nil {
			txs = []*models.Transaction{}
		}

		writeJSON(w, logger, TransactionsResponse{Transactions: txs})
	}
}
