// Package validation はリクエスト入力の構造体バリデーションを提供する。
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/slotkeeper/internal/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// エラー時のフィールド名にJSONタグ名を使う
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct はvalidateタグに従って構造体を検証する。
// 違反がある場合は違反フィールド名（JSON名）を列挙したmissing_fieldsエラーを返す。
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fe.Field())
	}
	return model.NewMissingFieldsError(fields...)
}
