// Package handler holds the gin handlers of the storefront API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

const genericFailure = "An unexpected error occurred"

// BaseHandler is embedded by every handler for the response envelope
type BaseHandler struct{}

func (h *BaseHandler) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) page(c *gin.Context, data any, total int64, page, size int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, size))
}

func (h *BaseHandler) reject(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

func (h *BaseHandler) badRequest(c *gin.Context, message string) {
	h.reject(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// currentUser writes a 401 when the request carries no identity
func (h *BaseHandler) currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.Identity{}.UserID(c.Request.Context())
	if !ok {
		h.reject(c, http.StatusUnauthorized, dto.ErrCodeNotAuthenticated, "Authentication required")
	}
	return userID, ok
}

// pathUUID writes a 400 when the path parameter is not a UUID
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// fail renders err through the error-code table. Causes of 5xx responses
// go to the log only.
func (h *BaseHandler) fail(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code, message := dto.ErrCodeInternal, genericFailure
	var de *shared.DomainError
	if errors.As(err, &de) {
		code, message = dto.NormalizeErrorCode(de.Code), de.Message
	}

	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.For(c.Request.Context(), zap.L()).Error("request failed", zap.String("code", code), zap.Error(err))
		message = genericFailure
	}
	h.reject(c, status, code, message)
}
