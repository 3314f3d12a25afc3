package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"giftletter/internal/canvas/itemstore"
	"giftletter/internal/canvas/model"
	"giftletter/internal/canvas/persistence"
	"giftletter/internal/canvas/repository"
	"giftletter/internal/canvas/service"
	"giftletter/internal/compose"
	"giftletter/internal/upload"
	"giftletter/pkg/logger"
)

// formOverhead leaves room for multipart framing so an oversized file is
// reported by the upload store rather than as a broken form.
const formOverhead = 1 << 20

type CanvasHandler struct {
	Service *service.GiftService
	Uploads *upload.Store
}

func NewCanvasHandler(service *service.GiftService, uploads *upload.Store) *CanvasHandler {
	return &CanvasHandler{Service: service, Uploads: uploads}
}

type StatusResponse struct {
	persistence.Status
	Label string `json:"label"`
}

type DoodleRequest struct {
	Strokes []compose.Stroke `json:"strokes"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrMissingID),
		errors.Is(err, model.ErrInvalidType),
		errors.Is(err, model.ErrInvalidColor),
		errors.Is(err, itemstore.ErrInvalidField),
		errors.Is(err, repository.ErrMissingFields),
		errors.Is(err, service.ErrMissingGiftID),
		errors.Is(err, upload.ErrInvalidFilename),
		errors.Is(err, upload.ErrEmpty),
		errors.Is(err, compose.ErrNotImage),
		errors.Is(err, compose.ErrEmptyPhoto),
		errors.Is(err, compose.ErrEmptyRecording),
		errors.Is(err, compose.ErrNoStrokes),
		errors.Is(err, compose.ErrInvalidColor):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, upload.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGiftDeleted):
		return http.StatusGone
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, what string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: %s: %v", what, err)
		http.Error(w, what, code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *CanvasHandler) CreateGift(w http.ResponseWriter, r *http.Request) {
	gift, err := h.Service.CreateGift(r.Context())
	if err != nil {
		fail(w, "Failed to create gift", err)
		return
	}
	writeJSON(w, http.StatusCreated, gift)
}

// GetCanvas serves the shareable, read-only view of a gift.
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	giftID := r.PathValue("id")
	items, err := h.Service.Snapshot(r.Context(), giftID)
	if err != nil {
		fail(w, "Failed to load canvas", err)
		return
	}
	writeJSON(w, http.StatusOK, model.CanvasResponse{GiftID: giftID, Items: items})
}

func (h *CanvasHandler) ReplaceCanvas(w http.ResponseWriter, r *http.Request) {
	var req model.CanvasResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Items == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Service.ReplaceSnapshot(r.Context(), r.PathValue("id"), req.Items); err != nil {
		fail(w, "Failed to replace canvas", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) DeleteGift(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteGift(r.Context(), r.PathValue("id")); err != nil {
		fail(w, "Failed to delete gift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	item, err := h.Service.NewItem(r.Context(), r.PathValue("id"), req)
	if err != nil {
		fail(w, "Failed to add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ItemResponse{Item: item})
}

func (h *CanvasHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req model.MoveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Service.MoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemId"), req.Position); err != nil {
		fail(w, "Failed to move item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	err := h.Service.UpdateItemField(r.Context(), r.PathValue("id"), r.PathValue("itemId"), itemstore.Field(req.Field), req.Value)
	if err != nil {
		fail(w, "Failed to update item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteItem(r.Context(), r.PathValue("id"), r.PathValue("itemId")); err != nil {
		fail(w, "Failed to delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Status(r.PathValue("id"))
	writeJSON(w, http.StatusOK, StatusResponse{Status: st, Label: st.Label()})
}

// placeItem is the completion callback shared by the dialogs: it puts the
// produced reference on the canvas as a new item of type t.
func (h *CanvasHandler) placeItem(r *http.Request, t model.ItemType, placed *model.LetterItem) compose.ItemReady {
	return func(ref string) error {
		item, err := h.Service.NewItem(r.Context(), r.PathValue("id"), model.AddItemRequest{Type: t, Content: ref})
		if err != nil {
			return err
		}
		*placed = item
		return nil
	}
}

// AddPhoto accepts a multipart "file" field, or with ?source=camera a single
// still frame as the raw body. ?upload=1 stores the image instead of
// inlining it.
func (h *CanvasHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Uploads.MaxBytes()+formOverhead)
	var uploader compose.Uploader
	if r.URL.Query().Get("upload") == "1" {
		uploader = h.Uploads
	}
	var item model.LetterItem
	dialog := compose.NewPhotoDialog(r.PathValue("id"), uploader, h.placeItem(r, model.ItemPhoto, &item))

	var err error
	if r.URL.Query().Get("source") == "camera" {
		err = dialog.FromCamera(r.Context(), compose.NewStillFrame(r.Body))
	} else {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			var maxErr *http.MaxBytesError
			if errors.As(ferr, &maxErr) {
				fail(w, "Photo too large", ferr)
				return
			}
			http.Error(w, "Missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			fail(w, "Failed to read photo", rerr)
			return
		}
		err = dialog.FromFile(r.Context(), header.Filename, data)
	}
	if err != nil {
		fail(w, "Failed to add photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ItemResponse{Item: item})
}

// AddVoice takes the recording as the raw request body.
func (h *CanvasHandler) AddVoice(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.Uploads.MaxBytes())
	var item model.LetterItem
	dialog := compose.NewVoiceDialog(r.PathValue("id"), h.Uploads, h.placeItem(r, model.ItemVoice, &item))
	if err := dialog.Record(r.Context(), compose.NewStreamRecorder(body, 0)); err != nil {
		fail(w, "Failed to add voice note", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ItemResponse{Item: item})
}

func (h *CanvasHandler) AddDoodle(w http.ResponseWriter, r *http.Request) {
	var req DoodleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var item model.LetterItem
	dialog := compose.NewDoodleDialog(h.placeItem(r, model.ItemDoodle, &item))
	for _, s := range req.Strokes {
		if err := dialog.AddStroke(s); err != nil {
			fail(w, "Invalid stroke", err)
			return
		}
	}
	if err := dialog.Confirm(r.Context()); err != nil {
		fail(w, "Failed to add doodle", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ItemResponse{Item: item})
}

// Upload stores a multipart "file" as-is and returns its URL without placing
// anything on the canvas.
func (h *CanvasHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Uploads.MaxBytes()+formOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, "Upload too large", err)
			return
		}
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, "Failed to read upload", err)
		return
	}
	name := r.FormValue("filename")
	if name == "" {
		name = header.Filename
	}
	url, err := h.Uploads.Put(r.Context(), r.PathValue("id"), name, data)
	if err != nil {
		fail(w, "Failed to store upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.UploadResponse{URL: url})
}

func (h *CanvasHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.Uploads.Get(r.Context(), r.PathValue("id"), r.PathValue("filename"))
	if err != nil {
		fail(w, "Failed to load upload", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}
