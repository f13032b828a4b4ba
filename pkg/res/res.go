package res

import (
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error     string `json:"error"`                // сообщение для пользователя
	ErrorCode int    `json:"error_code,omitempty"` // код для программной обработки
	Details   any    `json:"details,omitempty"`    // например, ошибки валидации
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(c *gin.Context, data any, status int) {
	c.JSON(status, data)
}

// JsonErrorResponse отправляет ошибку, логирует ее и прерывает цепочку обработчиков.
func JsonErrorResponse(c *gin.Context, errResponse ErrorResponse, status int, log *logger.Logger) {
	if errResponse.ErrorCode == 0 {
		errResponse.ErrorCode = status
	}
	c.AbortWithStatusJSON(status, errResponse)
	if log != nil {
		log.Warnw("Error response", "status", status, "error", errResponse.Error, "path", c.Request.URL.Path)
	}
}
