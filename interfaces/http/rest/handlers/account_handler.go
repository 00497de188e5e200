package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"diary-backend/application/services"
	"diary-backend/pkg/auth"
	"diary-backend/pkg/common"
	pkgerrors "diary-backend/pkg/errors"
)

// AccountHandler exposes the account delete cascade
type AccountHandler struct {
	accounts *services.AccountService
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, errors: errorHandler, logger: logger}
}

// DeleteMe handles DELETE /users/me
func (h *AccountHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return
	}

	if _, err := h.accounts.DeleteUser(r.Context(), user.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
