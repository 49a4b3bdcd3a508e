// Package meeting exposes the REST CRUD surface for meetings and their
// transcriptions, action items and insights.
package meeting

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	meetingModel "github.com/meetingflow/backend/internal/model/meeting"
	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/pkg/utils"
)

// Handler serves meeting CRUD routes.
type Handler struct {
	store storage.Storage
}

// New creates the meeting handler.
func New(store storage.Storage) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts meeting routes on the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/meetings", h.handleCreateMeeting)
	r.Get("/meetings/{id}", h.handleGetMeeting)
	r.Patch("/meetings/{id}", h.handleUpdateMeeting)
	r.Get("/users/{userID}/meetings", h.handleListUserMeetings)
	r.Get("/meetings/{id}/transcriptions", h.handleListTranscriptions)
	r.Get("/meetings/{id}/action-items", h.handleListActionItems)
	r.Get("/meetings/{id}/insights", h.handleGetInsights)
	r.Patch("/action-items/{id}", h.handleUpdateActionItem)
	r.Post("/meetings/{id}/export", h.handleExport)
}

func (h *Handler) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID       string `json:"userId"`
		Title        string `json:"title"`
		Status       string `json:"status"`
		AudioQuality string `json:"audioQuality"`
		Language     string `json:"language"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid meeting data")
		return
	}
	if payload.UserID == "" || payload.Title == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId and title are required")
		return
	}

	created, err := h.store.CreateMeeting(r.Context(), meetingModel.Meeting{
		UserID:       payload.UserID,
		Title:        payload.Title,
		Status:       payload.Status,
		AudioQuality: payload.AudioQuality,
		Language:     payload.Language,
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create meeting")
		return
	}

	utils.RespondJSON(w, http.StatusOK, created)
}

func (h *Handler) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.store.GetMeeting(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Meeting not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve meeting")
		return
	}

	transcriptions, err := h.store.GetTranscriptionsByMeeting(r.Context(), id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve meeting")
		return
	}
	actionItems, err := h.store.GetActionItemsByMeeting(r.Context(), id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve meeting")
		return
	}

	response := map[string]any{
		"meeting":        m,
		"transcriptions": transcriptions,
		"actionItems":    actionItems,
	}
	if insights, err := h.store.GetMeetingInsight(r.Context(), id); err == nil {
		response["insights"] = insights
	}

	utils.RespondJSON(w, http.StatusOK, response)
}

func (h *Handler) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := storage.MeetingUpdate{}
	if payload.Status != "" {
		update.Status = &payload.Status
		if payload.Status == meetingModel.StatusCompleted {
			now := time.Now().UTC()
			update.EndTime = &now
		}
	}

	updated, err := h.store.UpdateMeeting(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Meeting not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to update meeting")
		return
	}

	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleListUserMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.store.GetMeetingsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve meetings")
		return
	}
	if meetings == nil {
		meetings = []meetingModel.Meeting{}
	}
	utils.RespondJSON(w, http.StatusOK, meetings)
}

func (h *Handler) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	transcriptions, err := h.store.GetTranscriptionsByMeeting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve transcriptions")
		return
	}
	if transcriptions == nil {
		transcriptions = []meetingModel.Transcription{}
	}
	utils.RespondJSON(w, http.StatusOK, transcriptions)
}

func (h *Handler) handleListActionItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.GetActionItemsByMeeting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve action items")
		return
	}
	if items == nil {
		items = []meetingModel.ActionItem{}
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.store.GetMeetingInsight(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Meeting insights not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve insights")
		return
	}
	utils.RespondJSON(w, http.StatusOK, insights)
}

func (h *Handler) handleUpdateActionItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		AssignedTo  *string `json:"assignedTo"`
		DueDate     *string `json:"dueDate"`
		Status      *string `json:"status"`
		IsCompleted *bool   `json:"isCompleted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.store.UpdateActionItem(r.Context(), chi.URLParam(r, "id"), storage.ActionItemUpdate{
		Title:       payload.Title,
		Description: payload.Description,
		AssignedTo:  payload.AssignedTo,
		DueDate:     payload.DueDate,
		Status:      payload.Status,
		IsCompleted: payload.IsCompleted,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Action item not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to update action item")
		return
	}

	utils.RespondJSON(w, http.StatusOK, item)
}

// handleExport assembles the meeting summary payload for an external
// platform. Actual platform delivery is out of scope; the payload shape
// is what an integration worker would consume.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	m, err := h.store.GetMeeting(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Meeting not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to export meeting data")
		return
	}

	actionItems, err := h.store.GetActionItemsByMeeting(r.Context(), id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to export meeting data")
		return
	}

	exportData := map[string]any{
		"meeting":     m,
		"actionItems": actionItems,
		"platform":    payload.Platform,
		"exportedAt":  time.Now().UTC().Format(time.RFC3339),
		"status":      "success",
	}
	if insights, err := h.store.GetMeetingInsight(r.Context(), id); err == nil {
		exportData["insights"] = insights
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully exported to " + payload.Platform,
		"data":    exportData,
	})
}
