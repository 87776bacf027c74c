package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/sim-exchange/internal/service"
)

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse представляет структуру ответа с JWT-токеном
type AuthResponse struct {
	Token string `json:"token"`
}

// AuthHandler – HTTP-обработчик для аутентификации. Новый пользователь
// регистрируется при первом входе.
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if msg, err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("bad auth request", slog.String("reason", msg), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		token, err := authService.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, logger, "login failed", err)
			return
		}

		writeJSON(w, logger, AuthResponse{Token: token})
	}
}
