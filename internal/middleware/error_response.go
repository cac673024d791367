// Package middleware はHTTPミドルウェアとエラーレスポンスの書き込みを提供する。
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの形式。
// errorには機械判読用のエラーコードが入る。
type ErrorResponseBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

var categoryStatus = map[string]int{
	model.CategoryValidation: http.StatusBadRequest,
	model.CategoryNotFound:   http.StatusNotFound,
	model.CategoryConflict:   http.StatusConflict,
	model.CategoryAuth:       http.StatusUnauthorized,
}

// StatusForCategory はエラーカテゴリに対応するHTTPステータスを返す。
// 未知のカテゴリとsystemは500になる。
func StatusForCategory(category string) int {
	if status, ok := categoryStatus[category]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はapiErrをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:    apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError はserver_errorを500で書き込む。
// 原因は呼び出し側でログに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewServerError())
}
