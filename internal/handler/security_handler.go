package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/slotkeeper/internal/metrics"
	"github.com/hitoshi/slotkeeper/internal/model"
)

// AuthServiceInterface はセキュリティハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Setup(ctx context.Context, password string) error
	Login(ctx context.Context, password string) (string, error)
	Status(ctx context.Context) (bool, error)
}

// SecurityHandler は管理パスワードの設定とログインのHTTPハンドラー。
type SecurityHandler struct {
	service  AuthServiceInterface
	recorder Recorder
}

// NewSecurityHandler はSecurityHandlerを生成する。recorderはnilでもよい。
func NewSecurityHandler(service AuthServiceInterface, recorder Recorder) *SecurityHandler {
	return &SecurityHandler{service: service, recorder: recorderOrNop(recorder)}
}

type passwordRequest struct {
	Password string `json:"password"`
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
}

type statusResponse struct {
	Configured bool `json:"configured"`
}

// Setup は管理パスワードを初回のみ設定する。
// POST /api/security/setup
func (h *SecurityHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	if err := h.service.Setup(r.Context(), req.Password); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("security", "setup")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Login はパスワードを検証し、書き込み系APIで使うトークンを返す。
// POST /api/security/login
func (h *SecurityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Password)
	if err != nil {
		if model.IsCode(err, model.ErrCodeInvalidCredentials) {
			h.recorder.RecordLoginAttempt(metrics.LoginFailed)
		}
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordLoginAttempt(metrics.LoginSucceeded)
	writeJSON(w, http.StatusOK, okResponse{OK: true, Token: token})
}

// Status は管理パスワードが設定済みかを返す。
// GET /api/security/status
func (h *SecurityHandler) Status(w http.ResponseWriter, r *http.Request) {
	configured, err := h.service.Status(r.Context())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Configured: configured})
}
