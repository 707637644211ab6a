package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/middleware"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	"github.com/cogniseal/cogniseal-ledger/internal/service"
	"github.com/cogniseal/cogniseal-ledger/internal/validator"
)

// AuthHandler handles wallet login endpoints.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Challenge godoc
// POST /api/v1/auth/challenge
// Issues a one-time message for the wallet to sign.
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req model.ChallengeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	addr, _ := chain.ParseAddress(req.Address)
	ch, err := h.authService.IssueChallenge(c.Request.Context(), addr)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue challenge")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, ch)
}

// Login godoc
// POST /api/v1/auth/login
// Exchanges a signed challenge for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.WalletLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	switch {
	case errors.Is(err, service.ErrChallengeExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrChallengeExpired)
		return
	case errors.Is(err, service.ErrInvalidSignature):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidSignature)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Wallet login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Str("address", resp.Address.String()).Msg("Wallet logged in")
	response.Success(c, http.StatusOK, resp)
}

// Me godoc
// GET /api/v1/auth/me
// Returns the authenticated wallet address.
func (h *AuthHandler) Me(c *gin.Context) {
	addr, ok := middleware.GetAddress(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"address": addr})
}
