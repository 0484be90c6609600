package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Реализует тот же контракт,
// что и PostgresRepository: используется в тестах и при запуске без БД.
type MemoryRepository struct {
	mu sync.Mutex

	users         map[int64]*model.User
	bookings      map[int64]*model.Booking
	rooms         map[int64]*model.Room
	ledger        []model.PointsEntry
	ledgerUser    []int64
	feedback      map[int64]*model.Feedback
	tasks         map[int64]*model.Task
	announcements map[int64]*model.Announcement

	nextID int64
}

// NewMemoryRepository создаёт пустой репозиторий в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int64]*model.User),
		bookings:      make(map[int64]*model.Booking),
		rooms:         make(map[int64]*model.Room),
		feedback:      make(map[int64]*model.Feedback),
		tasks:         make(map[int64]*model.Task),
		announcements: make(map[int64]*model.Announcement),
	}
}

func (r *MemoryRepository) nextSeq() int64 {
	r.nextID++
	return r.nextID
}

// Ping всегда успешен: хранилище в памяти доступно вместе с процессом.
func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Close освобождает ресурсы репозитория.
func (r *MemoryRepository) Close() error {
	return nil
}

// AddRoom добавляет номер в номерной фонд.
func (r *MemoryRepository) AddRoom(room model.Room) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	room.ID = r.nextSeq()
	if room.Status == "" {
		room.Status = model.RoomStatusAvailable
	}
	room.CreatedAt = time.Now()
	r.rooms[room.ID] = &room
	return room.ID
}

// CreateUser создаёт пользователя. Имя и почта должны быть уникальны.
func (r *MemoryRepository) CreateUser(_ context.Context, username, email string, passwordHash []byte, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
	}

	u := &model.User{
		ID:           r.nextSeq(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Tier:         model.TierBronze,
		CreatedAt:    time.Now(),
	}
	r.users[u.ID] = u
	return u.ID, nil
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// UpdateUserTier изменяет уровень лояльности пользователя.
func (r *MemoryRepository) UpdateUserTier(_ context.Context, userID int64, tier model.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Tier = tier
	return nil
}

// CreateBooking сохраняет бронирование со статусом pending, назначает номер
// для категории room и начисляет баллы.
func (r *MemoryRepository) CreateBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Category == model.CategoryRoom {
		room := r.findAvailableRoom(b.ItemID)
		if room == nil {
			return model.Booking{}, fmt.Errorf("%w: %s", ErrNoRoomsAvailable, b.ItemID)
		}
		room.Status = model.RoomStatusOccupied
		id := room.ID
		b.RoomID = &id
	}

	b.ID = r.nextSeq()
	b.Status = model.BookingStatusPending
	b.CreatedAt = time.Now()
	stored := b
	r.bookings[b.ID] = &stored

	if b.PointsEarned > 0 {
		r.appendEntry(b.UserID, "Booking: "+b.ItemName, b.PointsEarned)
	}

	return b, nil
}

func (r *MemoryRepository) findAvailableRoom(roomType string) *model.Room {
	var best *model.Room
	for _, room := range r.rooms {
		if room.RoomType != roomType || room.Status != model.RoomStatusAvailable {
			continue
		}
		if best == nil || room.RoomNumber < best.RoomNumber {
			best = room
		}
	}
	return best
}

func (r *MemoryRepository) appendEntry(userID int64, description string, points int64) {
	r.ledger = append(r.ledger, model.PointsEntry{
		ID:          r.nextSeq(),
		Description: description,
		Points:      points,
		CreatedAt:   time.Now(),
	})
	r.ledgerUser = append(r.ledgerUser, userID)
}

// GetBookingsByUser возвращает бронирования пользователя, новые первыми.
func (r *MemoryRepository) GetBookingsByUser(_ context.Context, userID int64) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			res = append(res, *b)
		}
	}
	sortBookings(res)
	return res, nil
}

// ListBookings возвращает все бронирования, новые первыми.
func (r *MemoryRepository) ListBookings(_ context.Context) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		res = append(res, *b)
	}
	sortBookings(res)
	if len(res) == 0 {
		return nil, nil
	}
	return res, nil
}

func sortBookings(bs []model.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].ID > bs[j].ID
		}
		return bs[i].CreatedAt.After(bs[j].CreatedAt)
	})
}

// UpdateBookingStatus изменяет статус бронирования и при отмене или завершении
// освобождает назначенный номер.
func (r *MemoryRepository) UpdateBookingStatus(_ context.Context, bookingID int64, status model.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	b.Status = status

	if b.RoomID != nil && (status == model.BookingStatusCancelled || status == model.BookingStatusCompleted) {
		if room, ok := r.rooms[*b.RoomID]; ok {
			room.Status = model.RoomStatusAvailable
		}
	}

	return nil
}

// ListRooms возвращает номерной фонд.
func (r *MemoryRepository) ListRooms(_ context.Context) ([]model.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		res = append(res, *room)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RoomNumber < res[j].RoomNumber })
	if len(res) == 0 {
		return nil, nil
	}
	return res, nil
}

// GetBalance возвращает доступный баланс и сумму всех списаний пользователя.
func (r *MemoryRepository) GetBalance(_ context.Context, userID int64) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var credited, redeemed int64
	for i, e := range r.ledger {
		if r.ledgerUser[i] != userID {
			continue
		}
		if e.Points > 0 {
			credited += e.Points
		} else {
			redeemed -= e.Points
		}
	}

	current := credited - redeemed
	if current < 0 {
		current = 0
	}

	return current, redeemed, nil
}

// GetPointsHistory возвращает историю начислений и списаний, новые первыми.
func (r *MemoryRepository) GetPointsHistory(_ context.Context, userID int64) ([]model.PointsEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.PointsEntry
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledgerUser[i] == userID {
			res = append(res, r.ledger[i])
		}
	}
	return res, nil
}

// RedeemPoints списывает стоимость вознаграждения с баланса пользователя.
func (r *MemoryRepository) RedeemPoints(_ context.Context, userID int64, reward model.Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}

	var current int64
	for i, e := range r.ledger {
		if r.ledgerUser[i] == userID {
			current += e.Points
		}
	}

	if current < reward.CostPoints {
		return loyalty.ErrInsufficientPoints
	}

	r.appendEntry(userID, "Reward: "+reward.Name, -reward.CostPoints)
	return nil
}

// CreateFeedback сохраняет отзыв гостя.
func (r *MemoryRepository) CreateFeedback(_ context.Context, f model.Feedback) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.ID = r.nextSeq()
	f.Status = model.FeedbackStatusNew
	f.CreatedAt = time.Now()
	r.feedback[f.ID] = &f
	return f.ID, nil
}

// ListFeedback возвращает отзывы гостей, новые первыми.
func (r *MemoryRepository) ListFeedback(_ context.Context) ([]model.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Feedback
	for _, f := range r.feedback {
		res = append(res, *f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// UpdateFeedbackStatus изменяет состояние обращения.
func (r *MemoryRepository) UpdateFeedbackStatus(_ context.Context, id int64, status model.FeedbackStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.feedback[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	return nil
}

// CreateTask создаёт задачу персонала.
func (r *MemoryRepository) CreateTask(_ context.Context, t model.Task) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.nextSeq()
	t.Status = model.TaskStatusPending
	t.CreatedAt = time.Now()
	r.tasks[t.ID] = &t
	return t.ID, nil
}

// ListTasks возвращает задачи персонала, новые первыми.
func (r *MemoryRepository) ListTasks(_ context.Context) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Task
	for _, t := range r.tasks {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// UpdateTaskStatus изменяет состояние задачи.
func (r *MemoryRepository) UpdateTaskStatus(_ context.Context, id int64, status model.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

// CreateAnnouncement публикует объявление.
func (r *MemoryRepository) CreateAnnouncement(_ context.Context, a model.Announcement) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.nextSeq()
	a.CreatedAt = time.Now()
	r.announcements[a.ID] = &a
	return a.ID, nil
}

// ListAnnouncements возвращает объявления, новые первыми.
func (r *MemoryRepository) ListAnnouncements(_ context.Context) ([]model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Announcement
	for _, a := range r.announcements {
		res = append(res, *a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// DeleteAnnouncement удаляет объявление.
func (r *MemoryRepository) DeleteAnnouncement(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.announcements[id]; !ok {
		return ErrNotFound
	}
	delete(r.announcements, id)
	return nil
}
