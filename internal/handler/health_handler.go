package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout はストア疎通確認のタイムアウト。
const healthTimeout = 2 * time.Second

// HealthChecker はストアの疎通を確認する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	OK bool `json:"ok"`
}

// NewHealthHandler は/healthのハンドラーを返す。ストアに到達できない場合は503を返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{OK: true})
	}
}
