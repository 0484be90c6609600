// Package service реализует бизнес-логику сервиса Kuriftu Rewards.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kuriftu/rewards-system/internal/catalog"
	"github.com/kuriftu/rewards-system/internal/chat"
	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/pricing"
	"github.com/kuriftu/rewards-system/internal/repository"
	"github.com/kuriftu/rewards-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре почта-пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidDates возвращается, если дата выезда не позже даты заезда.
	ErrInvalidDates = errors.New("check-out date must be after check-in date")
	// ErrRewardNotEligible возвращается, если уровень пользователя ниже требуемого.
	ErrRewardNotEligible = errors.New("reward requires a higher tier")
	// ErrReservationInvalid возвращается вместе с ошибками полей формы.
	ErrReservationInvalid = errors.New("reservation form is invalid")
	// ErrInvalidPayment возвращается при неизвестном способе оплаты.
	ErrInvalidPayment = errors.New("unsupported payment method")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, username, email string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserTier(ctx context.Context, userID int64, tier model.Tier) error
	CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	GetBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	ListBookings(ctx context.Context) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int64, status model.BookingStatus) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetBalance(ctx context.Context, userID int64) (int64, int64, error)
	GetPointsHistory(ctx context.Context, userID int64) ([]model.PointsEntry, error)
	RedeemPoints(ctx context.Context, userID int64, reward model.Reward) error
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

// Service содержит бизнес-логику сервиса Kuriftu Rewards.
type Service struct {
	repo       Repository
	catalog    *catalog.Catalog
	calc       *pricing.Calculator
	redeemer   *loyalty.Redeemer
	chatClient *chat.Client
	logger     *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием, каталогом и клиентом чата.
func NewService(repo Repository, cat *catalog.Catalog, chatClient *chat.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		catalog:    cat,
		calc:       pricing.NewCalculator(),
		redeemer:   loyalty.NewRedeemer(),
		chatClient: chatClient,
		logger:     logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// RegisterUser регистрирует нового пользователя с ролью guest.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (int64, error) {
	hashed := hashPassword(email, password)
	id, err := s.repo.CreateUser(ctx, username, email, hashed, model.RoleGuest)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет почту и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateUserTier изменяет уровень лояльности пользователя.
// Доступно только администратору: автоматического повышения по баллам нет.
func (s *Service) UpdateUserTier(ctx context.Context, userID int64, tier model.Tier) error {
	if !loyalty.IsValidTier(tier) {
		return errors.New("unknown tier")
	}
	return s.repo.UpdateUserTier(ctx, userID, tier)
}

// CatalogItems возвращает позиции каталога, при непустой категории — с фильтром.
func (s *Service) CatalogItems(category model.Category) []model.CatalogItem {
	if category == "" {
		return s.catalog.Items()
	}
	return s.catalog.ItemsByCategory(category)
}

// QuoteBooking вычисляет стоимость и баллы за выбор пользователя, не сохраняя его.
// Используется формой бронирования для живого пересчёта.
func (s *Service) QuoteBooking(sel model.BookingSelection) (model.CatalogItem, model.BookingResult, error) {
	item, err := s.catalog.Item(sel.ItemID)
	if err != nil {
		return model.CatalogItem{}, model.BookingResult{}, err
	}
	return item, s.calc.Compute(item, sel), nil
}

// CreateBooking вычисляет стоимость, сохраняет бронирование и начисляет баллы.
// Для номеров диапазон дат обязан быть корректным: выезд строго позже заезда.
func (s *Service) CreateBooking(ctx context.Context, userID int64, sel model.BookingSelection) (*model.Booking, error) {
	item, err := s.catalog.Item(sel.ItemID)
	if err != nil {
		return nil, err
	}

	// Способ оплаты необязателен, но если указан, обязан быть известным.
	if sel.PaymentMethod != "" && !sel.PaymentMethod.Valid() {
		return nil, ErrInvalidPayment
	}

	policy := pricing.PolicyFor(item.Category)

	var checkIn, checkOut time.Time
	if policy.UsesDateRange {
		checkIn, err = pricing.ParseDate(sel.CheckIn)
		if err != nil {
			return nil, ErrInvalidDates
		}
		checkOut, err = pricing.ParseDate(sel.CheckOut)
		if err != nil {
			return nil, ErrInvalidDates
		}
		if !checkOut.After(checkIn) {
			return nil, ErrInvalidDates
		}
	} else {
		checkIn, err = pricing.ParseDate(sel.Date)
		if err != nil {
			return nil, ErrInvalidDates
		}
		checkOut = checkIn
	}

	result := s.calc.Compute(item, sel)

	b := model.Booking{
		UserID:          userID,
		ItemID:          item.ID,
		ItemName:        item.Name,
		Category:        item.Category,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestCount:      pricing.ClampGuests(sel.GuestCount, catalog.PolicyForItem(item).MaxGuests),
		TotalPriceCents: result.TotalAmountCents,
		PointsEarned:    result.PointsEarned,
	}

	stored, err := s.repo.CreateBooking(ctx, b)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetBookingsByUser возвращает список бронирований пользователя.
func (s *Service) GetBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	return s.repo.GetBookingsByUser(ctx, userID)
}

// ListBookings возвращает все бронирования для дашбордов персонала.
func (s *Service) ListBookings(ctx context.Context) ([]model.Booking, error) {
	return s.repo.ListBookings(ctx)
}

// UpdateBookingStatus изменяет статус бронирования.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID int64, status model.BookingStatus) error {
	return s.repo.UpdateBookingStatus(ctx, bookingID, status)
}

// ListRooms возвращает номерной фонд гостиницы.
func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	return s.repo.ListRooms(ctx)
}

// GetBalance возвращает баланс пользователя вместе с прогрессом до
// следующего уровня лояльности. Прогресс считается по накопленным за всё
// время баллам: списания не отбрасывают пользователя назад.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	current, redeemed, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance := model.Balance{
		Current:  current,
		Redeemed: redeemed,
		Tier:     u.Tier,
	}
	if next, missing, ok := loyalty.NextTier(current + redeemed); ok {
		balance.NextTier = next
		balance.PointsToNextTier = missing
	}
	return &balance, nil
}

// GetPointsHistory возвращает историю начислений и списаний пользователя.
func (s *Service) GetPointsHistory(ctx context.Context, userID int64) ([]model.PointsEntry, error) {
	return s.repo.GetPointsHistory(ctx, userID)
}

// AvailableRewards возвращает вознаграждения, доступные уровню пользователя.
func (s *Service) AvailableRewards(ctx context.Context, userID int64) ([]model.Reward, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return loyalty.AvailableRewards(s.catalog.Rewards(), u.Tier), nil
}

// BeginRedemption начинает двухфазное списание вознаграждения: проверяет уровень
// и баланс, затем выдаёт токен, ожидающий подтверждения. Баланс не меняется.
func (s *Service) BeginRedemption(ctx context.Context, userID int64, rewardID string) (*loyalty.Attempt, error) {
	reward, err := s.catalog.Reward(rewardID)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if loyalty.TierIndex(u.Tier) < loyalty.TierIndex(reward.RequiredTier) {
		return nil, ErrRewardNotEligible
	}

	current, _, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.redeemer.Begin(userID, reward, current)
}

// ConfirmRedemption подтверждает списание и проводит его через хранилище.
// Повторная проверка баланса выполняется в транзакции репозитория.
func (s *Service) ConfirmRedemption(ctx context.Context, userID int64, token string) (*loyalty.Attempt, error) {
	attempt, err := s.redeemer.Confirm(userID, token)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RedeemPoints(ctx, userID, attempt.Reward); err != nil {
		return nil, err
	}

	return attempt, nil
}

// CancelRedemption отменяет ожидающее подтверждения списание. Баланс не меняется.
func (s *Service) CancelRedemption(userID int64, token string) error {
	return s.redeemer.Cancel(userID, token)
}

// StartConfirmationSweeper запускает фоновую очистку просроченных подтверждений.
func (s *Service) StartConfirmationSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.redeemer.Sweep(); removed > 0 {
					s.logger.Info("expired redemption confirmations removed", zap.Int("count", removed))
				}
			}
		}
	}()
}

// CreateDiningReservation проверяет форму бронирования столика и сохраняет его
// как бронирование ресторана из каталога. Ошибки полей возвращаются картой
// вместе с ErrReservationInvalid.
func (s *Service) CreateDiningReservation(ctx context.Context, userID int64, r validation.DiningReservation) (*model.Booking, map[string]string, error) {
	if fieldErrs := validation.ValidateDiningReservation(r, time.Now()); len(fieldErrs) > 0 {
		return nil, fieldErrs, ErrReservationInvalid
	}

	b, err := s.CreateBooking(ctx, userID, model.BookingSelection{
		ItemID:     r.Restaurant,
		Date:       r.Date,
		Time:       r.Time,
		GuestCount: r.Guests,
	})
	if err != nil {
		return nil, nil, err
	}

	return b, nil, nil
}

// Chat отвечает на вопрос гостя через внешний генеративный API. Любой сбой
// превращается в статичный запасной ответ: чат не должен ломать страницу.
func (s *Service) Chat(ctx context.Context, question string) string {
	if s.chatClient == nil {
		return chat.FallbackReply
	}

	reply, err := s.chatClient.Reply(ctx, question)
	if err != nil {
		s.logger.Warn("chat API request failed", zap.Error(err))
		return chat.FallbackReply
	}

	return reply
}

// Rewards возвращает полный каталог вознаграждений без фильтра по уровню.
func (s *Service) Rewards() []model.Reward {
	return s.catalog.Rewards()
}

// CreateFeedback сохраняет отзыв гостя.
func (s *Service) CreateFeedback(ctx context.Context, f model.Feedback) (int64, error) {
	return s.repo.CreateFeedback(ctx, f)
}

// ListFeedback возвращает отзывы гостей для дашборда персонала.
func (s *Service) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	return s.repo.ListFeedback(ctx)
}

// UpdateFeedbackStatus изменяет состояние обращения.
func (s *Service) UpdateFeedbackStatus(ctx context.Context, id int64, status model.FeedbackStatus) error {
	return s.repo.UpdateFeedbackStatus(ctx, id, status)
}

// CreateTask создаёт задачу персонала.
func (s *Service) CreateTask(ctx context.Context, t model.Task) (int64, error) {
	return s.repo.CreateTask(ctx, t)
}

// ListTasks возвращает задачи персонала.
func (s *Service) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.repo.ListTasks(ctx)
}

// UpdateTaskStatus изменяет состояние задачи.
func (s *Service) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	return s.repo.UpdateTaskStatus(ctx, id, status)
}

// CreateAnnouncement публикует объявление.
func (s *Service) CreateAnnouncement(ctx context.Context, a model.Announcement) (int64, error) {
	return s.repo.CreateAnnouncement(ctx, a)
}

// ListAnnouncements возвращает объявления.
func (s *Service) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	return s.repo.ListAnnouncements(ctx)
}

// DeleteAnnouncement удаляет объявление.
func (s *Service) DeleteAnnouncement(ctx context.Context, id int64) error {
	return s.repo.DeleteAnnouncement(ctx, id)
}
