package middleware

import (
	"UpdateAegis/internal/core/domain"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的校验引擎上注册自定义规则，可重复调用
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
				return domain.ValidSlug(fl.Field().String())
			})
		}
	})
}
