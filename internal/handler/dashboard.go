package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kuriftu/rewards-system/internal/currency"
	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/repository"
)

func urlParamID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type feedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Rating  int    `json:"rating"`
	Message string `json:"message"`
}

// CreateFeedback принимает отзыв гостя.
func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Message == "" || req.Rating < 1 || req.Rating > 5 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateFeedback(r.Context(), model.Feedback{
		CustomerName:  req.Name,
		CustomerEmail: req.Email,
		Rating:        req.Rating,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.Error("create feedback error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type feedbackResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Rating    int    `json:"rating"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ListFeedback возвращает отзывы гостей для дашборда персонала.
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListFeedback(r.Context())
	if err != nil {
		h.logger.Error("list feedback error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]feedbackResponse, 0, len(list))
	for _, f := range list {
		resp = append(resp, feedbackResponse{
			ID:        f.ID,
			Name:      f.CustomerName,
			Email:     f.CustomerEmail,
			Rating:    f.Rating,
			Message:   f.Message,
			Status:    string(f.Status),
			CreatedAt: f.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateFeedbackStatus изменяет состояние обращения.
func (h *Handler) UpdateFeedbackStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.FeedbackStatus(req.Status)
	switch status {
	case model.FeedbackStatusNew, model.FeedbackStatusRead, model.FeedbackStatusResolved:
	default:
		http.Error(w, "Unknown feedback status", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateFeedbackStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update feedback error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

// CreateTask создаёт задачу персонала.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		http.Error(w, "Invalid due date", http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateTask(r.Context(), model.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Priority:    req.Priority,
		DueDate:     dueDate,
	})
	if err != nil {
		h.logger.Error("create task error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type taskResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assigned_to"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
	CreatedAt   string `json:"created_at"`
}

// ListTasks возвращает задачи персонала.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTasks(r.Context())
	if err != nil {
		h.logger.Error("list tasks error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]taskResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, taskResponse{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			AssignedTo:  t.AssignedTo,
			Priority:    t.Priority,
			Status:      string(t.Status),
			DueDate:     t.DueDate.Format("2006-01-02"),
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateTaskStatus изменяет состояние задачи.
func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.TaskStatus(req.Status)
	switch status {
	case model.TaskStatusPending, model.TaskStatusInProgress, model.TaskStatusCompleted:
	default:
		http.Error(w, "Unknown task status", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateTaskStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update task error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type announcementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type"`
}

// CreateAnnouncement публикует объявление.
func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	aType := model.AnnouncementType(req.Type)
	switch aType {
	case model.AnnouncementEvent, model.AnnouncementPromotion, model.AnnouncementNotice:
	default:
		http.Error(w, "Unknown announcement type", http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateAnnouncement(r.Context(), model.Announcement{
		Title: req.Title,
		Body:  req.Body,
		Type:  aType,
	})
	if err != nil {
		h.logger.Error("create announcement error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type announcementResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// ListAnnouncements возвращает объявления. Доступно без аутентификации:
// объявления показываются на главной странице.
func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAnnouncements(r.Context())
	if err != nil {
		h.logger.Error("list announcements error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]announcementResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, announcementResponse{
			ID:        a.ID,
			Title:     a.Title,
			Body:      a.Body,
			Type:      string(a.Type),
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteAnnouncement удаляет объявление.
func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteAnnouncement(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete announcement error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListAllBookings возвращает все бронирования для администратора.
func (h *Handler) ListAllBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListBookings(r.Context())
	if err != nil {
		h.logger.Error("list bookings error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, toBookingResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateBookingStatus изменяет статус бронирования.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.BookingStatus(req.Status)
	switch status {
	case model.BookingStatusPending, model.BookingStatusConfirmed,
		model.BookingStatusCancelled, model.BookingStatusCompleted:
	default:
		http.Error(w, "Unknown booking status", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateBookingStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update booking error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type tierRequest struct {
	Tier string `json:"tier"`
}

// UpdateUserTier изменяет уровень лояльности пользователя. Повышение уровня —
// ручное решение администратора, порогов автоматического повышения нет.
func (h *Handler) UpdateUserTier(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tier := model.Tier(req.Tier)
	if !loyalty.IsValidTier(tier) {
		http.Error(w, "Unknown tier", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateUserTier(r.Context(), id, tier); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update user tier error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type roomResponse struct {
	ID         int64  `json:"id"`
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type"`
	PriceETB   int64  `json:"price_etb"`
	Status     string `json:"status"`
}

// ListRooms возвращает номерной фонд для дашборда персонала.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("list rooms error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(rooms) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, roomResponse{
			ID:         room.ID,
			RoomNumber: room.RoomNumber,
			RoomType:   room.RoomType,
			PriceETB:   currency.ToDisplayCents(room.PricePerNightCents) / 100,
			Status:     string(room.Status),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
