package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kuriftu/rewards-system/internal/catalog"
	"github.com/kuriftu/rewards-system/internal/middleware"
	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/repository"
	"github.com/kuriftu/rewards-system/internal/service"
)

func newTestHandler(t *testing.T) (*Handler, *repository.MemoryRepository) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}

	repo := repository.NewMemoryRepository()
	repo.AddRoom(model.Room{RoomNumber: "101", RoomType: "lake-view-suite", PricePerNightCents: 35000})

	svc := service.NewService(repo, cat, nil, logger)
	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth), repo
}

func authCookie(t *testing.T, h *Handler, userID int64, role model.Role) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID, role)

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no auth cookie set")
	}
	return cookies[0]
}

func createUser(t *testing.T, repo *repository.MemoryRepository, email string, role model.Role) int64 {
	t.Helper()

	id, err := repo.CreateUser(context.Background(), email, email, []byte("hash"), role)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTestDB_OK(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.SetupRouter()

	rec := doJSON(t, router, http.MethodGet, "/test-db", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "Database connected successfully" {
		t.Fatalf("message = %q, want %q", resp["message"], "Database connected successfully")
	}
}

// failingPingService имитирует потерю соединения с базой данных.
type failingPingService struct {
	*service.Service
}

func (failingPingService) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestTestDB_Unavailable(t *testing.T) {
	h, _ := newTestHandler(t)
	h.service = failingPingService{}
	router := h.SetupRouter()

	rec := doJSON(t, router, http.MethodGet, "/test-db", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Database connection failed" {
		t.Fatalf("error = %q, want %q", resp["error"], "Database connection failed")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.SetupRouter()

	reg := registerRequest{Username: "abebe", Email: "abebe@example.com", Password: "secret"}

	rec := doJSON(t, router, http.MethodPost, "/api/user/register", reg, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("register must set auth cookie")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/user/register", reg, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/user/login", loginRequest{Email: "abebe@example.com", Password: "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/user/login", loginRequest{Email: "abebe@example.com", Password: "secret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp["role"] != "guest" || resp["tier"] != "bronze" {
		t.Fatalf("unexpected login response: %v", resp)
	}
}

func TestGetCatalog(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.SetupRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/catalog", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var items []catalogItemResponse
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected catalog items")
	}

	// Цена отображается в бырах: базовая цена, умноженная на курс.
	for _, item := range items {
		if item.ID == "lake-view-suite" {
			if item.PriceETB != 19250 {
				t.Fatalf("lake-view-suite PriceETB = %d, want 19250", item.PriceETB)
			}
			if item.PriceDisplay != "ETB 19,250" {
				t.Fatalf("PriceDisplay = %q, want ETB 19,250", item.PriceDisplay)
			}
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/catalog/spa", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("spa catalog status = %d, want %d", rec.Code, http.StatusOK)
	}

	items = items[:0]
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode spa catalog: %v", err)
	}
	for _, item := range items {
		if item.Category != "spa" {
			t.Fatalf("unexpected category %q in spa filter", item.Category)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/catalog/helipad", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unknown category status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", bookingRequest{ItemID: "lake-view-suite"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateBookingFlow(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	req := bookingRequest{
		ItemID:     "lake-view-suite",
		CheckIn:    "2024-03-15",
		CheckOut:   "2024-03-18",
		GuestCount: 2,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", req, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp bookingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if resp.TotalETB != 57750 {
		t.Fatalf("TotalETB = %d, want 57750", resp.TotalETB)
	}
	if resp.TotalDisplay != "ETB 57,750" {
		t.Fatalf("TotalDisplay = %q, want ETB 57,750", resp.TotalDisplay)
	}
	if resp.Points != 3000 {
		t.Fatalf("Points = %d, want 3000", resp.Points)
	}
	if resp.Status != "pending" {
		t.Fatalf("Status = %q, want pending", resp.Status)
	}
	if resp.RoomID == nil {
		t.Fatal("expected assigned room in booking response")
	}

	// Единственный номер занят: повторное бронирование конфликтует.
	rec = doJSON(t, router, http.MethodPost, "/api/bookings", req, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/bookings", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bookings status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/balance", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d, want %d", rec.Code, http.StatusOK)
	}

	var balance model.Balance
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Current != 3000 {
		t.Fatalf("balance = %d, want 3000", balance.Current)
	}
	if balance.Tier != model.TierBronze {
		t.Fatalf("tier = %s, want bronze", balance.Tier)
	}
	// Накоплено 3000 баллов: до платинового уровня не хватает 2001.
	if balance.NextTier != model.TierPlatinum {
		t.Fatalf("next tier = %s, want platinum", balance.NextTier)
	}
	if balance.PointsToNextTier != 2001 {
		t.Fatalf("points to next tier = %d, want 2001", balance.PointsToNextTier)
	}
}

func TestCreateBookingRejectsBadDates(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", bookingRequest{
		ItemID:     "lake-view-suite",
		CheckIn:    "2024-03-18",
		CheckOut:   "2024-03-15",
		GuestCount: 2,
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestQuoteBooking(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings/quote", bookingRequest{
		ItemID:     "ethiopian-coffee-ritual",
		Date:       "2024-04-01",
		GuestCount: 2,
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp quoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if resp.Quantity != 2 || resp.Points != 1000 {
		t.Fatalf("unexpected quote: %+v", resp)
	}
	// 30000 центов по курсу 55 в бырах.
	if resp.TotalETB != 16500 {
		t.Fatalf("TotalETB = %d, want 16500", resp.TotalETB)
	}

	// Котировка не создаёт бронирований.
	rec = doJSON(t, router, http.MethodGet, "/api/bookings", nil, cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bookings after quote status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestRedemptionFlow(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "gold@example.com", model.RoleGuest)
	if err := repo.UpdateUserTier(context.Background(), userID, model.TierGold); err != nil {
		t.Fatalf("UpdateUserTier: %v", err)
	}
	cookie := authCookie(t, h, userID, model.RoleGuest)

	// Недостаточно баллов: 402 без изменения состояния.
	rec := doJSON(t, router, http.MethodPost, "/api/rewards/gold-gift-card/redeem", nil, cookie)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("redeem without points status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/bookings", bookingRequest{
		ItemID:     "ethiopian-coffee-ritual",
		Date:       "2024-04-01",
		GuestCount: 6,
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d, want %d", rec.Code, http.StatusCreated)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/rewards/gold-gift-card/redeem", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var redeemResp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&redeemResp); err != nil {
		t.Fatalf("decode redeem response: %v", err)
	}
	token, _ := redeemResp["confirmation_token"].(string)
	if token == "" {
		t.Fatalf("expected confirmation token, got %v", redeemResp)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/redemptions/"+token+"/confirm", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// Повторное подтверждение того же токена невозможно.
	rec = doJSON(t, router, http.MethodPost, "/api/redemptions/"+token+"/confirm", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double confirm status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/balance", nil, cookie)
	var balance model.Balance
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Current != 1000 || balance.Redeemed != 2000 {
		t.Fatalf("balance = %d/%d, want 1000/2000", balance.Current, balance.Redeemed)
	}
}

func TestRedeemRewardTierForbidden(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "bronze@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	rec := doJSON(t, router, http.MethodPost, "/api/rewards/silver-gift-card/redeem", nil, cookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRoleGating(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	guestID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	staffID := createUser(t, repo, "staff@example.com", model.RoleStaff)
	adminID := createUser(t, repo, "admin@example.com", model.RoleAdmin)

	guestCookie := authCookie(t, h, guestID, model.RoleGuest)
	staffCookie := authCookie(t, h, staffID, model.RoleStaff)
	adminCookie := authCookie(t, h, adminID, model.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		cookie *http.Cookie
		want   int
	}{
		{"guest denied staff tasks", http.MethodGet, "/api/staff/tasks", nil, guestCookie, http.StatusForbidden},
		{"staff sees empty tasks", http.MethodGet, "/api/staff/tasks", nil, staffCookie, http.StatusNoContent},
		{"admin sees empty tasks", http.MethodGet, "/api/staff/tasks", nil, adminCookie, http.StatusNoContent},
		{"staff denied admin bookings", http.MethodGet, "/api/admin/bookings", nil, staffCookie, http.StatusForbidden},
		{"admin sees empty bookings", http.MethodGet, "/api/admin/bookings", nil, adminCookie, http.StatusNoContent},
		{"no cookie unauthorized", http.MethodGet, "/api/staff/tasks", nil, nil, http.StatusUnauthorized},
		{"admin updates tier", http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/tier", guestID), tierRequest{Tier: "silver"}, adminCookie, http.StatusOK},
		{"admin rejects bad tier", http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/tier", guestID), tierRequest{Tier: "diamond"}, adminCookie, http.StatusBadRequest},
		{"admin tier for missing user", http.MethodPatch, "/api/admin/users/9999/tier", tierRequest{Tier: "silver"}, adminCookie, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, tt.method, tt.path, tt.body, tt.cookie)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	staffID := createUser(t, repo, "staff@example.com", model.RoleStaff)
	staffCookie := authCookie(t, h, staffID, model.RoleStaff)

	// Отзыв принимается без аутентификации.
	rec := doJSON(t, router, http.MethodPost, "/api/feedback", feedbackRequest{
		Name:    "Sara",
		Email:   "sara@example.com",
		Rating:  5,
		Message: "Wonderful resort",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create feedback status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var created map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created feedback: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/feedback", feedbackRequest{Name: "Sara", Rating: 9}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid feedback status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/staff/feedback", nil, staffCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list feedback status = %d, want %d", rec.Code, http.StatusOK)
	}

	var list []feedbackResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if len(list) != 1 || list[0].Status != "new" {
		t.Fatalf("unexpected feedback list: %+v", list)
	}

	rec = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/staff/feedback/%d", created["id"]), statusRequest{Status: "resolved"}, staffCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update feedback status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAnnouncements(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	adminID := createUser(t, repo, "admin@example.com", model.RoleAdmin)
	adminCookie := authCookie(t, h, adminID, model.RoleAdmin)

	rec := doJSON(t, router, http.MethodGet, "/api/announcements", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("empty announcements status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/admin/announcements", announcementRequest{
		Title: "Meskel Celebration",
		Body:  "Bonfire by the lake",
		Type:  "event",
	}, adminCookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create announcement status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var created map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created announcement: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/announcements", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("announcements status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/announcements/%d", created["id"]), nil, adminCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete announcement status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestDiningReservationValidation(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	rec := doJSON(t, router, http.MethodPost, "/api/reservations/dining", map[string]any{
		"name":   "",
		"email":  "not-an-email",
		"phone":  "123",
		"guests": 0,
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp map[string]map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(resp["errors"]) == 0 {
		t.Fatalf("expected field errors, got %v", resp)
	}
}

func TestChatFallback(t *testing.T) {
	h, repo := newTestHandler(t)
	router := h.SetupRouter()

	userID := createUser(t, repo, "guest@example.com", model.RoleGuest)
	cookie := authCookie(t, h, userID, model.RoleGuest)

	rec := doJSON(t, router, http.MethodPost, "/api/chat", chatRequest{Message: "Do you have a spa?"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if resp["reply"] == "" {
		t.Fatal("expected fallback reply")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/chat", chatRequest{}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
