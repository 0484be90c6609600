// Package handler содержит HTTP-обработчики API сервиса Kuriftu Rewards.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kuriftu/rewards-system/internal/catalog"
	"github.com/kuriftu/rewards-system/internal/currency"
	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/middleware"
	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/repository"
	"github.com/kuriftu/rewards-system/internal/service"
	"github.com/kuriftu/rewards-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error
	RegisterUser(ctx context.Context, username, email, password string) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	UpdateUserTier(ctx context.Context, userID int64, tier model.Tier) error
	CatalogItems(category model.Category) []model.CatalogItem
	QuoteBooking(sel model.BookingSelection) (model.CatalogItem, model.BookingResult, error)
	CreateBooking(ctx context.Context, userID int64, sel model.BookingSelection) (*model.Booking, error)
	GetBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	ListBookings(ctx context.Context) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int64, status model.BookingStatus) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetPointsHistory(ctx context.Context, userID int64) ([]model.PointsEntry, error)
	AvailableRewards(ctx context.Context, userID int64) ([]model.Reward, error)
	BeginRedemption(ctx context.Context, userID int64, rewardID string) (*loyalty.Attempt, error)
	ConfirmRedemption(ctx context.Context, userID int64, token string) (*loyalty.Attempt, error)
	CancelRedemption(userID int64, token string) error
	CreateDiningReservation(ctx context.Context, userID int64, r validation.DiningReservation) (*model.Booking, map[string]string, error)
	Chat(ctx context.Context, question string) string
	CreateFeedback(ctx context.Context, f model.Feedback) (int64, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
	UpdateFeedbackStatus(ctx context.Context, id int64, status model.FeedbackStatus) error
	CreateTask(ctx context.Context, t model.Task) (int64, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error
	CreateAnnouncement(ctx context.Context, a model.Announcement) (int64, error)
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	DeleteAnnouncement(ctx context.Context, id int64) error
}

// Handler реализует HTTP-обработчики API сервиса Kuriftu Rewards.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// TestDB проверяет подключение к базе данных.
func (h *Handler) TestDB(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("database ping error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Database connection failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Database connected successfully",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, model.RoleGuest)
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID, u.Role)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"role":     u.Role,
		"tier":     u.Tier,
	})
}

type catalogItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	// Цены отдаются в бырах: базовая цена умножена на курс.
	PriceETB       int64  `json:"price_etb"`
	PriceDisplay   string `json:"price_display"`
	Points         int64  `json:"points"`
	Duration       string `json:"duration,omitempty"`
	MaxGuests      int    `json:"max_guests"`
	GuestLabel     string `json:"guest_label"`
	UsesDateRange  bool   `json:"uses_date_range"`
}

// GetCatalog возвращает позиции каталога, при наличии категории — с фильтром.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	category := model.Category(chi.URLParam(r, "category"))

	items := h.service.CatalogItems(category)
	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]catalogItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toCatalogItemResponse(item))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toCatalogItemResponse(item model.CatalogItem) catalogItemResponse {
	policy := catalog.PolicyForItem(item)
	displayCents := currency.ToDisplayCents(item.BasePriceCents)
	return catalogItemResponse{
		ID:            item.ID,
		Name:          item.Name,
		Description:   item.Description,
		Category:      string(item.Category),
		PriceETB:      displayCents / 100,
		PriceDisplay:  currency.Format(displayCents),
		Points:        item.BasePoints,
		Duration:      item.Duration,
		MaxGuests:     policy.MaxGuests,
		GuestLabel:    policy.GuestLabel,
		UsesDateRange: policy.UsesDateRange,
	}
}

type rewardResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CostPoints   int64  `json:"cost_points"`
	RequiredTier string `json:"required_tier"`
	Type         string `json:"type"`
}

// GetRewards возвращает вознаграждения, доступные уровню текущего пользователя.
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	rewards, err := h.service.AvailableRewards(r.Context(), userID)
	if err != nil {
		h.logger.Error("get rewards error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(rewards) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		resp = append(resp, rewardResponse{
			ID:           rw.ID,
			Name:         rw.Name,
			Description:  rw.Description,
			CostPoints:   rw.CostPoints,
			RequiredTier: string(rw.RequiredTier),
			Type:         string(rw.Type),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type bookingRequest struct {
	ItemID        string `json:"item_id"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	GuestCount    int    `json:"guest_count"`
	PaymentMethod string `json:"payment_method"`
}

func (req bookingRequest) toSelection() model.BookingSelection {
	return model.BookingSelection{
		ItemID:        req.ItemID,
		CheckIn:       req.CheckIn,
		CheckOut:      req.CheckOut,
		Date:          req.Date,
		Time:          req.Time,
		GuestCount:    req.GuestCount,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
	}
}

type quoteResponse struct {
	ItemID       string `json:"item_id"`
	Quantity     int64  `json:"quantity"`
	TotalETB     int64  `json:"total_etb"`
	TotalDisplay string `json:"total_display"`
	Points       int64  `json:"points"`
}

func toQuoteResponse(item model.CatalogItem, result model.BookingResult) quoteResponse {
	displayCents := currency.ToDisplayCents(result.TotalAmountCents)
	return quoteResponse{
		ItemID:       item.ID,
		Quantity:     result.Quantity,
		TotalETB:     displayCents / 100,
		TotalDisplay: currency.Format(displayCents),
		Points:       result.PointsEarned,
	}
}

// QuoteBooking пересчитывает стоимость и баллы по мере заполнения формы.
func (h *Handler) QuoteBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	item, result, err := h.service.QuoteBooking(req.toSelection())
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("quote booking error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toQuoteResponse(item, result))
}

type bookingResponse struct {
	ID           int64  `json:"id"`
	RoomID       *int64 `json:"room_id,omitempty"`
	ItemID       string `json:"item_id"`
	ItemName     string `json:"item_name"`
	Category     string `json:"category"`
	CheckIn      string `json:"check_in"`
	CheckOut     string `json:"check_out"`
	GuestCount   int    `json:"guest_count"`
	TotalETB     int64  `json:"total_etb"`
	TotalDisplay string `json:"total_display"`
	Points       int64  `json:"points"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	displayCents := currency.ToDisplayCents(b.TotalPriceCents)
	return bookingResponse{
		ID:           b.ID,
		RoomID:       b.RoomID,
		ItemID:       b.ItemID,
		ItemName:     b.ItemName,
		Category:     string(b.Category),
		CheckIn:      b.CheckIn.Format("2006-01-02"),
		CheckOut:     b.CheckOut.Format("2006-01-02"),
		GuestCount:   b.GuestCount,
		TotalETB:     displayCents / 100,
		TotalDisplay: currency.Format(displayCents),
		Points:       b.PointsEarned,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
}

// CreateBooking сохраняет бронирование текущего пользователя и начисляет баллы.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.CreateBooking(r.Context(), userID, req.toSelection())
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrItemNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidDates), errors.Is(err, service.ErrInvalidPayment):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrNoRoomsAvailable):
			http.Error(w, "No rooms of this type are available", http.StatusConflict)
		default:
			h.logger.Error("create booking error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(*b))
}

// GetBookings возвращает список бронирований текущего пользователя.
func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	bookings, err := h.service.GetBookingsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get bookings error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBalance возвращает баланс баллов текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

type pointsEntryResponse struct {
	Description string `json:"description"`
	Points      int64  `json:"points"`
	CreatedAt   string `json:"created_at"`
}

// GetPointsHistory возвращает историю начислений и списаний текущего пользователя.
func (h *Handler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	history, err := h.service.GetPointsHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("get points history error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]pointsEntryResponse, 0, len(history))
	for _, e := range history {
		resp = append(resp, pointsEntryResponse{
			Description: e.Description,
			Points:      e.Points,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// RedeemReward начинает двухфазное списание вознаграждения и возвращает токен
// подтверждения. Баланс на этом шаге не меняется.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	rewardID := chi.URLParam(r, "id")

	attempt, err := h.service.BeginRedemption(r.Context(), userID, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrRewardNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrRewardNotEligible):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("redeem reward error", zap.Error(err), zap.Int64("userID", userID), zap.String("reward", rewardID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"confirmation_token": attempt.Token,
		"reward_id":          attempt.Reward.ID,
		"cost_points":        attempt.Reward.CostPoints,
		"expires_in_seconds": int(loyalty.DefaultConfirmationTTL.Seconds()),
	})
}

// ConfirmRedemption подтверждает списание по токену и списывает баллы.
func (h *Handler) ConfirmRedemption(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token := chi.URLParam(r, "token")

	attempt, err := h.service.ConfirmRedemption(r.Context(), userID, token)
	if err != nil {
		switch {
		case errors.Is(err, loyalty.ErrConfirmationNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, loyalty.ErrConfirmationExpired):
			http.Error(w, "Confirmation expired", http.StatusGone)
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("confirm redemption error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reward_id":    attempt.Reward.ID,
		"points_spent": attempt.Reward.CostPoints,
	})
}

// CancelRedemption отменяет ожидающее подтверждения списание.
func (h *Handler) CancelRedemption(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token := chi.URLParam(r, "token")

	if err := h.service.CancelRedemption(userID, token); err != nil {
		switch {
		case errors.Is(err, loyalty.ErrConfirmationNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, loyalty.ErrConfirmationExpired):
			http.Error(w, "Confirmation expired", http.StatusGone)
		default:
			h.logger.Error("cancel redemption error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CreateDiningReservation обрабатывает форму бронирования столика.
func (h *Handler) CreateDiningReservation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req validation.DiningReservation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, fieldErrs, err := h.service.CreateDiningReservation(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationInvalid):
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
		case errors.Is(err, catalog.ErrItemNotFound):
			http.Error(w, "Unknown restaurant", http.StatusNotFound)
		default:
			h.logger.Error("dining reservation error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(*b))
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat пересылает вопрос гостя генеративному API и возвращает ответ.
// Запрос наружу несёт контекст входящего запроса: уход со страницы отменяет его.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Message == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	reply := h.service.Chat(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
