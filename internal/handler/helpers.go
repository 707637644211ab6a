package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
)

// parseID reads a positive decimal path parameter.
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func parseAddressParam(c *gin.Context, name string) (chain.Address, bool) {
	addr, err := chain.ParseAddress(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return chain.Address{}, false
	}
	return addr, true
}

// failLedger maps ledger and coprocessor errors to the response envelope.
func failLedger(c *gin.Context, log zerolog.Logger, err error) {
	if reason, ok := ledger.RevertReason(err); ok {
		response.Reverted(c, reason)
		return
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, fhe.ErrAuthorization):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidDecryptAuth)
	case errors.Is(err, fhe.ErrNotAllowed):
		response.Fail(c, http.StatusForbidden, response.ErrDecryptionDenied)
	case errors.Is(err, fhe.ErrUnknownHandle):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownCiphertext)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
