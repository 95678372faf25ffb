package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/crosswms/loadorder/internal/infrastructure/logger"
	"github.com/crosswms/loadorder/internal/interfaces/http/dto"
	"github.com/crosswms/loadorder/internal/interfaces/http/middleware"
)

// requestID returns the id assigned by the RequestID middleware, falling
// back to the raw header when the middleware did not run
func requestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// dialogIDParam parses the :id path parameter. A malformed id is answered
// with 400 and ok is false.
func dialogIDParam(c *gin.Context) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid dialog ID format")
		return uuid.Nil, false
	}
	return id, true
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, dto.NewSuccessResponse(data))
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, requestID(c)))
}

// respondError maps err onto the error envelope. Dialog errors such as
// NOT_FOUND or NO_DOCUMENT_TYPE keep their code and message; anything else
// is logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		abort(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	_ = c.Error(err)
	logger.L(c.Request.Context()).Error("Unhandled error",
		zap.String("route", c.FullPath()),
		zap.Error(err))
	abort(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
