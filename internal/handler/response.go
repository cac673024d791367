package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/slotkeeper/internal/middleware"
	"github.com/hitoshi/slotkeeper/internal/model"
)

// maxBodyBytes は通常リクエストのボディ上限。
const maxBodyBytes = 1 << 20

// Recorder はハンドラーが記録する業務メトリクス。
// metrics.MetricsCollectorの部分集合として定義する。
type Recorder interface {
	RecordOperation(entity, operation string)
	RecordRejection(code string)
	RecordLoginAttempt(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string) {}
func (nopRecorder) RecordRejection(string)         {}
func (nopRecorder) RecordLoginAttempt(string)      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// successResponse は削除・インポート成功時のレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。解析できない場合はmissing_fieldsを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewMissingFieldsError()
	}
	return nil
}

// handleServiceError はサービス層から返されたエラーをカテゴリに応じたHTTPステータスに変換する。
// APIError以外は500 server_errorとし、詳細はログにのみ出力する。
func handleServiceError(w http.ResponseWriter, r *http.Request, rec Recorder, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		rec.RecordRejection(apiErr.Code)
		middleware.WriteErrorResponse(w, middleware.StatusForCategory(apiErr.Category), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	rec.RecordRejection(model.ErrCodeServerError)
	middleware.WriteInternalServerError(w)
}
