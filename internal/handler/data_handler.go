package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/slotkeeper/internal/snapshot"
)

// maxSnapshotBytes はインポートするスナップショットのボディ上限。
const maxSnapshotBytes = 16 << 20

// SnapshotServiceInterface はデータ同期ハンドラーが必要とするサービスインターフェース。
type SnapshotServiceInterface interface {
	Export(ctx context.Context) (*snapshot.Document, error)
	Import(ctx context.Context, doc *snapshot.Document) (*snapshot.Result, error)
}

// DataHandler は全データのエクスポートとインポートのHTTPハンドラー。
type DataHandler struct {
	service  SnapshotServiceInterface
	recorder Recorder
}

// NewDataHandler はDataHandlerを生成する。recorderはnilでもよい。
func NewDataHandler(service SnapshotServiceInterface, recorder Recorder) *DataHandler {
	return &DataHandler{service: service, recorder: recorderOrNop(recorder)}
}

type importResponse struct {
	Success       bool `json:"success"`
	Platforms     int  `json:"platforms"`
	Subscriptions int  `json:"subscriptions"`
}

// Export は全データのスナップショットを返す。
// GET /api/data
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Export(r.Context())
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Import はスナップショットで全データを置き換える。
// POST /api/data
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	var doc snapshot.Document
	if err := decodeJSON(w, r, maxSnapshotBytes, &doc); err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	res, err := h.service.Import(r.Context(), &doc)
	if err != nil {
		handleServiceError(w, r, h.recorder, err)
		return
	}

	h.recorder.RecordOperation("snapshot", "import")
	writeJSON(w, http.StatusOK, importResponse{Success: true, Platforms: res.Platforms, Subscriptions: res.Subscriptions})
}
