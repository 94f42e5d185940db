package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/maintlog/internal/maintenance"
	"github.com/hitoshi/maintlog/internal/metrics"
	"github.com/hitoshi/maintlog/internal/model"
)

// 記録変更の操作ラベル
const (
	operationCreate = "create"
	operationUpdate = "update"
	operationDelete = "delete"
)

// RecordServiceInterface は整備記録ハンドラーが必要とするサービスインターフェース。
type RecordServiceInterface interface {
	// List は整備記録を整備日の新しい順に返す。
	List(ctx context.Context) ([]*model.MaintenanceLog, error)
	// Get はIDで整備記録を取得する。
	Get(ctx context.Context, id int64) (*model.MaintenanceLog, error)
	// Create は整備記録を作成し、採番されたIDを返す。
	Create(ctx context.Context, in maintenance.RecordInput) (int64, error)
	// Update は整備記録を全項目置き換えで更新する。
	Update(ctx context.Context, id int64, in maintenance.RecordInput) error
	// Delete は整備記録を削除する。
	Delete(ctx context.Context, id int64) error
}

// RecordHandler は整備記録APIのHTTPハンドラー。
type RecordHandler struct {
	service   RecordServiceInterface
	collector metrics.MetricsCollector
}

// NewRecordHandler はRecordHandlerを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewRecordHandler(service RecordServiceInterface, collector metrics.MetricsCollector) *RecordHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &RecordHandler{
		service:   service,
		collector: collector,
	}
}

// createRecordResponse は整備記録作成のレスポンス。
type createRecordResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// ListRecords は整備記録の一覧を返す。
// GET /records
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if records == nil {
		records = []*model.MaintenanceLog{}
	}

	writeJSON(w, http.StatusOK, records)
}

// GetRecord は整備記録を1件返す。
// GET /records/{id}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// CreateRecord は整備記録を作成する。
// POST /records
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r, operationCreate)
	if !ok {
		return
	}

	id, err := h.service.Create(r.Context(), in)
	h.recordMutation(operationCreate, err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createRecordResponse{
		ID:      id,
		Message: "Maintenance log created successfully",
	})
}

// UpdateRecord は整備記録を全項目置き換えで更新する。
// PUT /records/{id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	in, ok := h.decodeInput(w, r, operationUpdate)
	if !ok {
		return
	}

	err := h.service.Update(r.Context(), id, in)
	h.recordMutation(operationUpdate, err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Maintenance log updated successfully"})
}

// DeleteRecord は整備記録を削除する。
// DELETE /records/{id}
func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	err := h.service.Delete(r.Context(), id)
	h.recordMutation(operationDelete, err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Maintenance log deleted successfully"})
}

// decodeInput はリクエストボディを整備記録の入力にデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func (h *RecordHandler) decodeInput(w http.ResponseWriter, r *http.Request, operation string) (maintenance.RecordInput, bool) {
	var in maintenance.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.collector.RecordMutation(operation, metrics.OutcomeInvalid)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return in, false
	}
	return in, true
}

// recordMutation は変更操作の結果をメトリクスに記録する。
func (h *RecordHandler) recordMutation(operation string, err error) {
	h.collector.RecordMutation(operation, mutationOutcome(err))
}

// mutationOutcome はエラーから変更操作の結果ラベルを決める。
func mutationOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return metrics.OutcomeError
	}
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return metrics.OutcomeInvalid
	case model.ErrCodeRecordNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

// parseRecordID はURLパラメータから整備記録IDを取り出す。
// 正の整数でない場合は400を書き込みfalseを返す。
func parseRecordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(raw))
		return 0, false
	}
	return id, true
}
