package response

import (
	"log/slog"
	"net/http"

	"anoa.com/itdesk/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// ResponseError standardized error response for the JSON endpoints.
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		slog.Error("internal error", "path", c.Request.URL.Path, "error", err)
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	if ve, ok := apperror.AsValidationError(err); ok {
		c.JSON(code, gin.H{"error": apperror.ErrInvalidInput.Error(), "fields": ve.Fields})
		return
	}

	c.JSON(code, gin.H{"error": apperror.UserMessage(err, err.Error())})
}

// Success writes data under the "data" key.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}
