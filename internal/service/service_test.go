package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kuriftu/rewards-system/internal/catalog"
	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/repository"
	"github.com/kuriftu/rewards-system/internal/validation"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user@example.com", "pass")
	b := hashPassword("user@example.com", "pass")
	c := hashPassword("user@example.com", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}

	repo := repository.NewMemoryRepository()
	repo.AddRoom(model.Room{RoomNumber: "101", RoomType: "lake-view-suite", PricePerNightCents: 35000})

	return NewService(repo, cat, nil, nil), repo
}

func registerGuest(t *testing.T, svc *Service) int64 {
	t.Helper()

	id, err := svc.RegisterUser(context.Background(), "abebe", "abebe@example.com", "secret")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	return id
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	svc, _ := newTestService(t)
	registerGuest(t, svc)

	_, err := svc.RegisterUser(context.Background(), "abebe2", "abebe@example.com", "secret")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	svc, _ := newTestService(t)
	id := registerGuest(t, svc)

	u, err := svc.AuthenticateUser(context.Background(), "abebe@example.com", "secret")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if u.ID != id || u.Role != model.RoleGuest {
		t.Fatalf("unexpected user: %+v", u)
	}

	_, err = svc.AuthenticateUser(context.Background(), "abebe@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, err = svc.AuthenticateUser(context.Background(), "nobody@example.com", "secret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestCreateBookingRoom(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	b, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:     "lake-view-suite",
		CheckIn:    "2024-03-15",
		CheckOut:   "2024-03-18",
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	// Три ночи по базовой цене 35000 центов и 1000 баллов.
	if b.TotalPriceCents != 105000 {
		t.Fatalf("TotalPriceCents = %d, want 105000", b.TotalPriceCents)
	}
	if b.PointsEarned != 3000 {
		t.Fatalf("PointsEarned = %d, want 3000", b.PointsEarned)
	}
	if b.RoomID == nil {
		t.Fatal("expected assigned room")
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Current != 3000 {
		t.Fatalf("balance after booking = %d, want 3000", balance.Current)
	}
}

func TestGetBalanceTierProgress(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Tier != model.TierBronze {
		t.Fatalf("tier = %s, want bronze", balance.Tier)
	}
	if balance.NextTier != model.TierSilver {
		t.Fatalf("next tier = %s, want silver", balance.NextTier)
	}
	if balance.PointsToNextTier != 1001 {
		t.Fatalf("points to next tier = %d, want 1001", balance.PointsToNextTier)
	}

	// Три ночи дают 3000 баллов: прогресс отсчитывается от накопленного.
	if _, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:     "lake-view-suite",
		CheckIn:    "2024-03-15",
		CheckOut:   "2024-03-18",
		GuestCount: 2,
	}); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	balance, err = svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.NextTier != model.TierPlatinum {
		t.Fatalf("next tier = %s, want platinum", balance.NextTier)
	}
	if balance.PointsToNextTier != 2001 {
		t.Fatalf("points to next tier = %d, want 2001", balance.PointsToNextTier)
	}
}

func TestCreateBookingRejectsBadDates(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	tests := []struct {
		name     string
		checkIn  string
		checkOut string
	}{
		{"checkout before checkin", "2024-03-18", "2024-03-15"},
		{"same day", "2024-03-15", "2024-03-15"},
		{"garbage checkin", "not-a-date", "2024-03-18"},
		{"missing checkout", "2024-03-15", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
				ItemID:     "lake-view-suite",
				CheckIn:    tt.checkIn,
				CheckOut:   tt.checkOut,
				GuestCount: 2,
			})
			if !errors.Is(err, ErrInvalidDates) {
				t.Fatalf("expected ErrInvalidDates, got %v", err)
			}
		})
	}
}

func TestCreateBookingPaymentMethod(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	_, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:        "lake-view-suite",
		CheckIn:       "2024-03-15",
		CheckOut:      "2024-03-18",
		GuestCount:    2,
		PaymentMethod: model.PaymentMethod("barter"),
	})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}

	b, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:        "lake-view-suite",
		CheckIn:       "2024-03-15",
		CheckOut:      "2024-03-18",
		GuestCount:    2,
		PaymentMethod: model.PaymentBankTransfer,
	})
	if err != nil {
		t.Fatalf("CreateBooking with valid payment method: %v", err)
	}
	if b.RoomID == nil {
		t.Fatal("expected assigned room")
	}
}

func TestCreateBookingSpaPerGuest(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	b, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:     "ethiopian-coffee-ritual",
		Date:       "2024-04-01",
		Time:       "14:00",
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if b.TotalPriceCents != 30000 {
		t.Fatalf("TotalPriceCents = %d, want 30000", b.TotalPriceCents)
	}
	if b.PointsEarned != 1000 {
		t.Fatalf("PointsEarned = %d, want 1000", b.PointsEarned)
	}
	if b.RoomID != nil {
		t.Fatal("spa booking must not get a room")
	}
}

func TestCreateBookingUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	_, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID: "helicopter-tour",
		Date:   "2024-04-01",
	})
	if !errors.Is(err, catalog.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestQuoteBookingDoesNotPersist(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	_, result, err := svc.QuoteBooking(model.BookingSelection{
		ItemID:     "garden-villa",
		CheckIn:    "2024-05-01",
		CheckOut:   "2024-05-03",
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("QuoteBooking: %v", err)
	}
	if result.TotalAmountCents != 100000 || result.PointsEarned != 3000 {
		t.Fatalf("unexpected quote: %+v", result)
	}

	bookings, err := svc.GetBookingsByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBookingsByUser: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("quote must not persist a booking, got %d", len(bookings))
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Current != 0 {
		t.Fatalf("quote must not accrue points, got %d", balance.Current)
	}
}

func TestAvailableRewardsFollowsTier(t *testing.T) {
	svc, repo := newTestService(t)
	userID := registerGuest(t, svc)

	rewards, err := svc.AvailableRewards(context.Background(), userID)
	if err != nil {
		t.Fatalf("AvailableRewards: %v", err)
	}
	if len(rewards) != 0 {
		t.Fatalf("bronze user must see no rewards, got %d", len(rewards))
	}

	if err := repo.UpdateUserTier(context.Background(), userID, model.TierGold); err != nil {
		t.Fatalf("UpdateUserTier: %v", err)
	}

	rewards, err = svc.AvailableRewards(context.Background(), userID)
	if err != nil {
		t.Fatalf("AvailableRewards: %v", err)
	}
	for _, r := range rewards {
		if r.RequiredTier == model.TierPlatinum {
			t.Fatalf("gold user must not see platinum reward %s", r.ID)
		}
	}
	if len(rewards) != 3 {
		t.Fatalf("gold user must see 3 rewards, got %d", len(rewards))
	}
}

func TestRedemptionFlow(t *testing.T) {
	svc, repo := newTestService(t)
	userID := registerGuest(t, svc)

	if err := repo.UpdateUserTier(context.Background(), userID, model.TierGold); err != nil {
		t.Fatalf("UpdateUserTier: %v", err)
	}

	// Бронирование спа-услуги на шесть гостей даёт 3000 баллов.
	_, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:     "ethiopian-coffee-ritual",
		Date:       "2024-04-01",
		GuestCount: 6,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	attempt, err := svc.BeginRedemption(context.Background(), userID, "gold-gift-card")
	if err != nil {
		t.Fatalf("BeginRedemption: %v", err)
	}
	if attempt.State != loyalty.StateConfirmationPending {
		t.Fatalf("unexpected state %s", attempt.State)
	}

	// До подтверждения баланс не меняется.
	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Current != 3000 {
		t.Fatalf("balance changed before confirmation: %d", balance.Current)
	}

	confirmed, err := svc.ConfirmRedemption(context.Background(), userID, attempt.Token)
	if err != nil {
		t.Fatalf("ConfirmRedemption: %v", err)
	}
	if confirmed.State != loyalty.StateConfirmed {
		t.Fatalf("unexpected state %s", confirmed.State)
	}

	balance, err = svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Current != 1000 || balance.Redeemed != 2000 {
		t.Fatalf("balance after confirm = %d/%d, want 1000/2000", balance.Current, balance.Redeemed)
	}

	_, err = svc.ConfirmRedemption(context.Background(), userID, attempt.Token)
	if !errors.Is(err, loyalty.ErrConfirmationNotFound) {
		t.Fatalf("expected ErrConfirmationNotFound on double confirm, got %v", err)
	}
}

func TestRedemptionCancelKeepsBalance(t *testing.T) {
	svc, repo := newTestService(t)
	userID := registerGuest(t, svc)

	if err := repo.UpdateUserTier(context.Background(), userID, model.TierSilver); err != nil {
		t.Fatalf("UpdateUserTier: %v", err)
	}

	_, err := svc.CreateBooking(context.Background(), userID, model.BookingSelection{
		ItemID:     "couples-retreat",
		Date:       "2024-04-01",
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	attempt, err := svc.BeginRedemption(context.Background(), userID, "silver-gift-card")
	if err != nil {
		t.Fatalf("BeginRedemption: %v", err)
	}

	if err := svc.CancelRedemption(userID, attempt.Token); err != nil {
		t.Fatalf("CancelRedemption: %v", err)
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Current != 2000 || balance.Redeemed != 0 {
		t.Fatalf("cancel must not touch balance, got %d/%d", balance.Current, balance.Redeemed)
	}
}

func TestBeginRedemptionInsufficientPoints(t *testing.T) {
	svc, repo := newTestService(t)
	userID := registerGuest(t, svc)

	if err := repo.UpdateUserTier(context.Background(), userID, model.TierPlatinum); err != nil {
		t.Fatalf("UpdateUserTier: %v", err)
	}

	_, err := svc.BeginRedemption(context.Background(), userID, "round-trip-flight")
	if !errors.Is(err, loyalty.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestBeginRedemptionTierGate(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	_, err := svc.BeginRedemption(context.Background(), userID, "silver-gift-card")
	if !errors.Is(err, ErrRewardNotEligible) {
		t.Fatalf("expected ErrRewardNotEligible for bronze user, got %v", err)
	}
}

func TestCreateDiningReservation(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	b, fieldErrs, err := svc.CreateDiningReservation(context.Background(), userID, validation.DiningReservation{
		Name:       "Abebe Bikila",
		Email:      "abebe@example.com",
		Phone:      "+251 911 123456",
		Restaurant: "lakeside-restaurant",
		Date:       date,
		Time:       "19:00",
		Guests:     4,
	})
	if err != nil {
		t.Fatalf("CreateDiningReservation: %v (fields: %v)", err, fieldErrs)
	}
	if b.Category != model.CategoryDining {
		t.Fatalf("unexpected category %s", b.Category)
	}
	if b.TotalPriceCents != 16000 || b.PointsEarned != 800 {
		t.Fatalf("unexpected totals: %d cents, %d points", b.TotalPriceCents, b.PointsEarned)
	}
}

func TestCreateDiningReservationInvalidForm(t *testing.T) {
	svc, _ := newTestService(t)
	userID := registerGuest(t, svc)

	_, fieldErrs, err := svc.CreateDiningReservation(context.Background(), userID, validation.DiningReservation{
		Name:   "",
		Email:  "not-an-email",
		Phone:  "123",
		Date:   "2020-01-01",
		Guests: 0,
	})
	if !errors.Is(err, ErrReservationInvalid) {
		t.Fatalf("expected ErrReservationInvalid, got %v", err)
	}
	if len(fieldErrs) == 0 {
		t.Fatal("expected field errors")
	}
	if fieldErrs["Name"] == "" {
		t.Fatalf("expected name error, got %v", fieldErrs)
	}
}

func TestChatWithoutClientFallsBack(t *testing.T) {
	svc := NewService(repository.NewMemoryRepository(), nil, nil, nil)

	reply := svc.Chat(context.Background(), "Do you have a spa?")
	if reply == "" {
		t.Fatal("expected fallback reply")
	}
}

func TestStartConfirmationSweeperStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.StartConfirmationSweeper(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartConfirmationSweeper did not return")
	}
}
