package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "handlers")

// IdempotencyHeader carries the client-chosen key for retry-safe writes.
const IdempotencyHeader = "Idempotency-Key"

type errorMapping struct {
	err    error
	status int
}

// errorStatuses is checked in order; the first errors.Is match wins.
var errorStatuses = []errorMapping{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrIdempotencyKeyRequired, http.StatusBadRequest},
	{services.ErrUnknownField, http.StatusBadRequest},
	{services.ErrInvalidField, http.StatusBadRequest},
	{services.ErrDuplicateInfluencer, http.StatusBadRequest},
	{services.ErrThresholdNotMet, http.StatusBadRequest},
	{services.ErrNotApproved, http.StatusBadRequest},
	{services.ErrPledgingClosed, http.StatusBadRequest},
	{services.ErrWithdrawalClosed, http.StatusBadRequest},
	{services.ErrUnsupportedNetwork, http.StatusBadRequest},
	{services.ErrInvalidStatus, http.StatusBadRequest},
	{services.ErrNoPledges, http.StatusBadRequest},
	{services.ErrCannotDemoteAdmin, http.StatusBadRequest},
	{services.ErrInfluencerNotFound, http.StatusNotFound},
	{services.ErrPledgeNotFound, http.StatusNotFound},
	{services.ErrTokenNotFound, http.StatusNotFound},
	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrNotInfluencer, http.StatusNotFound},
	{services.ErrTokenDataNotFound, http.StatusNotFound},
	{services.ErrIdempotencyConflict, http.StatusConflict},
	{services.ErrAlreadyApproved, http.StatusConflict},
	{services.ErrAlreadyLaunched, http.StatusConflict},
	{services.ErrAlreadyRejected, http.StatusConflict},
	{services.ErrInfluencerLive, http.StatusConflict},
	{services.ErrLiquidityExists, http.StatusConflict},
	{services.ErrLiquidityRunning, http.StatusConflict},
	{services.ErrTokenAddressInUse, http.StatusConflict},
	{services.ErrConcurrentUpdate, http.StatusConflict},
	{services.ErrLiquidityTimeout, http.StatusGatewayTimeout},
}

func statusFor(err error) int {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes {"error", "details"} with the status mapped from err.
// Internal errors keep a generic message and are logged.
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error(message)
		c.JSON(status, gin.H{"error": message, "details": err.Error()})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}

// idParam parses a positive numeric path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
