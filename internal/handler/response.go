package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-checkout/internal/apperror"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

// writeError answers with the error envelope. Internal details are logged, not returned.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperror.HTTPStatus(err)
	internal := apperror.Internal(err)
	body := errorBody{Code: internal.Code, Message: internal.Message}

	var appErr *apperror.AppError
	switch {
	case status == http.StatusInternalServerError:
	case errors.As(err, &appErr):
		body = errorBody{Code: appErr.Code, Message: appErr.Message}
	default:
		body = errorBody{Code: "REQUEST_FAILED", Message: http.StatusText(status)}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
