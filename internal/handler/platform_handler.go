package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// PlatformServiceInterface はプラットフォームハンドラーが必要とするサービスインターフェース。
type PlatformServiceInterface interface {
	Search(ctx context.Context, query string) ([]*model.Platform, error)
	Create(ctx context.Context, in model.PlatformInput) (*model.Platform, error)
	Update(ctx context.Context, id string, in model.PlatformInput) (*model.Platform, error)
	Delete(ctx context.Context, id string) error
	AvailableProfiles(ctx context.Context, id string) (*model.ProfileAvailability, error)
}

// PlatformHandler はプラットフォーム管理のHTTPハンドラー。
type PlatformHandler struct {
	service  PlatformServiceInterface
	recorder Recorder
}

// NewPlatformHandler はPlatformHandlerを生成する。recorderはnilでもよい。
func NewPlatformHandler(service PlatformServiceInterface, recorder Recorder) *PlatformHandler {
	return &PlatformHandler{service: service, recorder: recorderOrNop(recorder)}
}

// platformResponse はプラットフォームのAPIレスポンス。
type platformResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Profiles int    `json:"profiles"`
}

// platformRequest はプラットフォーム作成・更新のリクエストボディ。
// profilesはフォーム由来の文字列も受け付ける。
type platformRequest struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Profiles model.FlexInt `json:"profiles"`
}

func (req platformRequest) input() model.PlatformInput {
	return model.PlatformInput{Name: req.Name, Email: req.Email, Password: req.Password, Profiles: int(req.Profiles)}
}

type availabilityResponse struct {
	Available []int `json:"available"`
	Total     int   `json:"total"`
	Used      int   `json:"used"`
}

func toPlatformResponse(p *model.Platform) platformResponse {
	return platformResponse{ID: p.ID, Name: p.Name, Email: p.Email, Password: p.Password, Profiles: p.Profiles}
}

// ListPlatforms はプラットフォームを名前順で返す。
// GET /api/platforms?q=
func (h *PlatformHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	resp := make([]platformResponse, 0, len(platforms))
	for _, p := range platforms {
		resp = append(resp, toPlatformResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreatePlatform はプラットフォームを登録する。
// POST /api/platforms
func (h *PlatformHandler) CreatePlatform(w http.ResponseWriter, r *http.Request) {
	var req platformRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	p, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("platform", "create")
	writeJSON(w, http.StatusOK, toPlatformResponse(p))
}

// UpdatePlatform はプラットフォームを更新する。
// PUT /api/platforms/{id}
func (h *PlatformHandler) UpdatePlatform(w http.ResponseWriter, r *http.Request) {
	var req platformRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("platform", "update")
	writeJSON(w, http.StatusOK, toPlatformResponse(p))
}

// DeletePlatform はプラットフォームと紐づく契約を削除する。
// DELETE /api/platforms/{id}
func (h *PlatformHandler) DeletePlatform(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("platform", "delete")
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// AvailableProfiles は空きプロファイル番号を返す。
// GET /api/platforms/{id}/available-profiles
func (h *PlatformHandler) AvailableProfiles(w http.ResponseWriter, r *http.Request) {
	avail, err := h.service.AvailableProfiles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	available := avail.Available
	if available == nil {
		available = []int{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: available, Total: avail.Total, Used: avail.Used})
}
