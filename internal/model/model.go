// Package model содержит доменные сущности сервиса Kuriftu Rewards.
package model

import "time"

// Role определяет роль пользователя в системе.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleGuest Role = "guest"
)

// Tier описывает уровень лояльности гостя. Порядок уровней фиксирован:
// bronze < silver < gold < platinum.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// User представляет зарегистрированного пользователя программы лояльности.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	Role         Role
	Tier         Tier
	CreatedAt    time.Time
}

// Category определяет вид бронируемой позиции каталога.
type Category string

const (
	CategoryRoom     Category = "room"
	CategorySpa      Category = "spa"
	CategoryActivity Category = "activity"
	CategoryDining   Category = "dining"
)

// CatalogItem описывает бронируемую позицию каталога: номер, спа-услугу,
// активность или ресторан. Позиции неизменяемы после загрузки каталога.
type CatalogItem struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    Category `yaml:"category"`
	// BasePriceCents — базовая цена в центах за одну единицу бронирования
	// (ночь для номеров, гость для остальных категорий).
	BasePriceCents int64 `yaml:"base_price_cents"`
	// BasePoints — баллы за одну единицу бронирования.
	BasePoints int64  `yaml:"base_points"`
	Duration   string `yaml:"duration,omitempty"`
	// MaxGuests переопределяет лимит гостей категории, если больше нуля.
	MaxGuests int `yaml:"max_guests,omitempty"`
}

// RoomStatus описывает состояние физического номера гостиницы.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusOccupied    RoomStatus = "occupied"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

// Room — физический номер гостиницы. RoomType соотносит номер с позицией
// каталога категории room.
type Room struct {
	ID                 int64
	RoomNumber         string
	RoomType           string
	PricePerNightCents int64
	Status             RoomStatus
	CreatedAt          time.Time
}

// PaymentMethod указывает выбранный способ оплаты. Носит информационный характер.
type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
)

// Valid сообщает, входит ли способ оплаты в список поддерживаемых.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentBankTransfer, PaymentCash:
		return true
	}
	return false
}

// BookingSelection содержит выбор пользователя в форме бронирования.
// Для номеров заполняется диапазон дат, для остальных категорий — дата и время.
type BookingSelection struct {
	ItemID        string
	CheckIn       string
	CheckOut      string
	Date          string
	Time          string
	GuestCount    int
	PaymentMethod PaymentMethod
}

// BookingResult — вычисленная стоимость и баллы за бронирование.
// Значения всегда неотрицательны и производны от выбора пользователя.
type BookingResult struct {
	TotalAmountCents int64
	PointsEarned     int64
	// Quantity — количество ночей либо гостей, использованное в расчёте.
	Quantity int64
}

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking описывает сохранённое бронирование.
type Booking struct {
	ID     int64
	UserID int64
	// RoomID заполняется только для бронирований категории room:
	// при создании бронированию назначается свободный номер нужного типа.
	RoomID          *int64
	ItemID          string
	ItemName        string
	Category        Category
	CheckIn         time.Time
	CheckOut        time.Time
	GuestCount      int
	TotalPriceCents int64
	PointsEarned    int64
	Status          BookingStatus
	CreatedAt       time.Time
}

// RewardType определяет вид вознаграждения.
type RewardType string

const (
	RewardGiftCard  RewardType = "gift-card"
	RewardHotelStay RewardType = "hotel-stay"
	RewardFlight    RewardType = "flight"
)

// Valid сообщает, известен ли вид вознаграждения.
func (t RewardType) Valid() bool {
	switch t {
	case RewardGiftCard, RewardHotelStay, RewardFlight:
		return true
	}
	return false
}

// Reward описывает вознаграждение из каталога программы лояльности.
type Reward struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	CostPoints   int64      `yaml:"cost_points"`
	RequiredTier Tier       `yaml:"required_tier"`
	Type         RewardType `yaml:"type"`
}

// Balance содержит текущий баланс баллов и сумму всех списаний пользователя.
type Balance struct {
	Current  int64 `json:"current"`
	Redeemed int64 `json:"redeemed"`
	Tier     Tier  `json:"tier"`
	// Прогресс до следующего уровня для дашборда. Для платинового
	// уровня NextTier пуст и не сериализуется.
	NextTier         Tier  `json:"next_tier,omitempty"`
	PointsToNextTier int64 `json:"points_to_next_tier,omitempty"`
}

// PointsEntry — запись истории начислений и списаний баллов.
type PointsEntry struct {
	ID          int64
	Description string
	// Points положительны для начислений и отрицательны для списаний.
	Points    int64
	CreatedAt time.Time
}

// FeedbackStatus описывает состояние обращения гостя.
type FeedbackStatus string

const (
	FeedbackStatusNew      FeedbackStatus = "new"
	FeedbackStatusRead     FeedbackStatus = "read"
	FeedbackStatusResolved FeedbackStatus = "resolved"
)

// Feedback — отзыв гостя, обрабатываемый персоналом.
type Feedback struct {
	ID            int64
	CustomerName  string
	CustomerEmail string
	Rating        int
	Message       string
	Status        FeedbackStatus
	CreatedAt     time.Time
}

// TaskStatus описывает состояние задачи персонала.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task — задача, назначенная сотруднику.
type Task struct {
	ID          int64
	Title       string
	Description string
	AssignedTo  string
	Priority    string
	Status      TaskStatus
	DueDate     time.Time
	CreatedAt   time.Time
}

// AnnouncementType определяет вид объявления.
type AnnouncementType string

const (
	AnnouncementEvent     AnnouncementType = "event"
	AnnouncementPromotion AnnouncementType = "promotion"
	AnnouncementNotice    AnnouncementType = "notice"
)

// Announcement — объявление, публикуемое администратором.
type Announcement struct {
	ID        int64
	Title     string
	Body      string
	Type      AnnouncementType
	CreatedAt time.Time
}
