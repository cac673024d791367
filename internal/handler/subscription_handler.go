package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/subscription"
)

// SubscriptionServiceInterface は契約ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	Search(ctx context.Context, filter subscription.ListFilter) ([]model.SubscriptionView, error)
	Get(ctx context.Context, id int64) (*model.SubscriptionView, error)
	Create(ctx context.Context, in model.SubscriptionInput) (*model.Subscription, error)
	Update(ctx context.Context, id int64, in model.SubscriptionInput) (*model.Subscription, error)
	Delete(ctx context.Context, id int64) error
}

// SubscriptionHandler は契約管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service  SubscriptionServiceInterface
	recorder Recorder
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。recorderはnilでもよい。
func NewSubscriptionHandler(service SubscriptionServiceInterface, recorder Recorder) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, recorder: recorderOrNop(recorder)}
}

// subscriptionResponse は契約のAPIレスポンス。
type subscriptionResponse struct {
	ID              int64  `json:"id"`
	PlatformID      string `json:"platform_id"`
	Service         string `json:"service"`
	AccountEmail    string `json:"account_email"`
	AccountPassword string `json:"account_password"`
	ProfileNumber   int    `json:"profile_number"`
	Pin             string `json:"pin"`
	ClientName      string `json:"client_name"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

// subscriptionRequest は契約作成・更新のリクエストボディ。
type subscriptionRequest struct {
	PlatformID      string        `json:"platform_id"`
	Service         string        `json:"service"`
	AccountEmail    string        `json:"account_email"`
	AccountPassword string        `json:"account_password"`
	ProfileNumber   model.FlexInt `json:"profile_number"`
	Pin             string        `json:"pin"`
	ClientName      string        `json:"client_name"`
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
}

func (req subscriptionRequest) input() model.SubscriptionInput {
	return model.SubscriptionInput{
		PlatformID:      req.PlatformID,
		Service:         req.Service,
		AccountEmail:    req.AccountEmail,
		AccountPassword: req.AccountPassword,
		ProfileNumber:   int(req.ProfileNumber),
		Pin:             req.Pin,
		ClientName:      req.ClientName,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}
}

// subscriptionViewResponse は一覧表示用に現在のプラットフォーム名と残日数を付与した契約。
type subscriptionViewResponse struct {
	subscriptionResponse
	PlatformName  string `json:"platform_name"`
	DaysRemaining int    `json:"days_remaining"`
	Status        string `json:"status"`
}

func toSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              s.ID,
		PlatformID:      s.PlatformID,
		Service:         s.Service,
		AccountEmail:    s.AccountEmail,
		AccountPassword: s.AccountPassword,
		ProfileNumber:   s.ProfileNumber,
		Pin:             s.Pin,
		ClientName:      s.ClientName,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate,
	}
}

func toSubscriptionViewResponse(v *model.SubscriptionView) subscriptionViewResponse {
	return subscriptionViewResponse{
		subscriptionResponse: toSubscriptionResponse(&v.Subscription),
		PlatformName:         v.PlatformName,
		DaysRemaining:        v.DaysRemaining,
		Status:               string(v.Status),
	}
}

// ListSubscriptions は契約を終了日順で返す。
// GET /api/subscriptions?q=&platform_id=
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Search(r.Context(), subscription.ListFilter{
		Query:      r.URL.Query().Get("q"),
		PlatformID: r.URL.Query().Get("platform_id"),
	})
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	resp := make([]subscriptionViewResponse, 0, len(views))
	for i := range views {
		resp = append(resp, toSubscriptionViewResponse(&views[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSubscription は契約を1件返す。
// GET /api/subscriptions/{id}
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionID(r)
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionViewResponse(view))
}

// CreateSubscription は契約を登録する。
// POST /api/subscriptions
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	sub, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("subscription", "create")
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// UpdateSubscription は契約を更新する。
// PUT /api/subscriptions/{id}
func (h *SubscriptionHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionID(r)
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	sub, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("subscription", "update")
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// DeleteSubscription は契約を削除する。
// DELETE /api/subscriptions/{id}
func (h *SubscriptionHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionID(r)
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("subscription", "delete")
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// subscriptionID はパスの契約IDを解析する。整数でなければsubscription_not_foundを返す。
func subscriptionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, model.NewSubscriptionNotFoundError(raw)
	}
	return id, nil
}
