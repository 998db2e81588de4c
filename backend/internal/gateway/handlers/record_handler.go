package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classrecord/backend/internal/gateway/util"
	"classrecord/backend/internal/importer"
	"classrecord/backend/internal/record"
)

// MaxUploadBytes caps the multipart body of a spreadsheet upload.
const MaxUploadBytes = 10 << 20

// RecordHandler serves the instructor class record table.
type RecordHandler struct {
	Service  *record.Service
	Validate *validator.Validate
	Logger   *zap.Logger
}

// UpdateRecordRequest mirrors the JSON input for PATCH /records/{template}/{id}
type UpdateRecordRequest struct {
	Fields map[string]interface{} `json:"fields" validate:"required,min=1"`
}

// ListRecords handles GET /records/{template}
// Query Params: q (optional search on ID, first or last name)
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	tmpl := chi.URLParam(r, "template")
	q := r.URL.Query().Get("q")

	records, err := h.Service.List(r.Context(), tmpl, q)
	if err != nil {
		util.HandleError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"records": records,
		"total":   len(records),
	})
}

// UploadRecords handles POST /records/{template}/upload
// Expects a multipart form with an .xlsx or .csv file under "file".
func (h *RecordHandler) UploadRecords(w http.ResponseWriter, r *http.Request) {
	tmpl := chi.URLParam(r, "template")

	// 1. Read the file
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Upload must be a multipart form no larger than 10MB")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// 2. Parse rows
	rows, err := importer.Read(header.Filename, file)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 3. Commit
	report, err := h.Service.Upload(r.Context(), tmpl, rows)
	if err != nil {
		util.HandleError(w, err)
		return
	}

	h.Logger.Info("Class record uploaded",
		zap.String("template", tmpl),
		zap.String("file", header.Filename),
		zap.Int("committed", report.Committed),
	)
	util.WriteJSON(w, http.StatusOK, report)
}

// UpdateRecord handles PATCH /records/{template}/{id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	tmpl := chi.URLParam(r, "template")
	id := chi.URLParam(r, "id")

	var req UpdateRecordRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		util.WriteValidationError(w, err)
		return
	}

	rec, err := h.Service.Save(r.Context(), tmpl, id, req.Fields)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /records/{template}/{id}
func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	tmpl := chi.URLParam(r, "template")
	id := chi.URLParam(r, "id")

	if err := h.Service.Delete(r.Context(), tmpl, id); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Record %s deleted", id),
	})
}

// ExportRecords handles GET /records/{template}/export
func (h *RecordHandler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	buf, tmpl, err := h.Service.Export(r.Context(), chi.URLParam(r, "template"))
	if err != nil {
		util.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tmpl.Name+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("Export write failed", zap.Error(err))
	}
}

// StreamRecords handles GET /records/{template}/stream
// Server-sent events, one "snapshot" event per table change. The store
// listener is released when the client disconnects.
func (h *RecordHandler) StreamRecords(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		util.WriteJSONError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ctx := r.Context()
	feed, err := h.Service.Subscribe(ctx, chi.URLParam(r, "template"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	defer feed.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		records, err := feed.Next(ctx)
		if err != nil {
			return
		}
		payload, err := json.Marshal(records)
		if err != nil {
			h.Logger.Error("Failed to encode snapshot", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
