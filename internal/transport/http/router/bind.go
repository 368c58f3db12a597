package router

import (
	"UpdateAegis/internal/core/port"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON 解析请求体。校验错误原样返回，其余解析错误归为参数错误。
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: 请求体格式无效: %v", port.ErrValidation, err)
}
