package loyalty

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuriftu/rewards-system/internal/model"
)

// ErrInsufficientPoints возвращается при попытке списать больше баллов, чем есть на балансе.
var (
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrConfirmationNotFound возвращается для неизвестного или уже завершённого подтверждения.
	ErrConfirmationNotFound = errors.New("confirmation not found")
	// ErrConfirmationExpired возвращается, если время на подтверждение истекло.
	ErrConfirmationExpired = errors.New("confirmation expired")
)

// AttemptState — состояние попытки списания вознаграждения.
type AttemptState string

const (
	StateConfirmationPending AttemptState = "confirmation_pending"
	StateConfirmed           AttemptState = "confirmed"
	StateCancelled           AttemptState = "cancelled"
)

// Attempt описывает попытку списания, ожидающую явного подтверждения.
// Баланс не изменяется, пока попытка не подтверждена.
type Attempt struct {
	Token     string
	UserID    int64
	Reward    model.Reward
	State     AttemptState
	CreatedAt time.Time
}

// DefaultConfirmationTTL — время, отведённое на подтверждение списания.
const DefaultConfirmationTTL = 5 * time.Minute

// Redeemer хранит незавершённые попытки списания и проводит их через
// последовательность состояний: проверка баланса, ожидание подтверждения,
// подтверждение либо отмена. Отмена и истечение срока не меняют баланс.
type Redeemer struct {
	mu      sync.Mutex
	pending map[string]*Attempt
	ttl     time.Duration
	now     func() time.Time
}

// NewRedeemer создаёт Redeemer со стандартным сроком подтверждения.
func NewRedeemer() *Redeemer {
	return &Redeemer{
		pending: make(map[string]*Attempt),
		ttl:     DefaultConfirmationTTL,
		now:     time.Now,
	}
}

// Begin проверяет достаточность баланса и переводит попытку в ожидание
// подтверждения. При нехватке баллов возвращает ErrInsufficientPoints,
// не изменяя состояния. Проверка принадлежности вознаграждения уровню
// пользователя выполняется выше, на этапе выбора из каталога.
func (r *Redeemer) Begin(userID int64, reward model.Reward, balance int64) (*Attempt, error) {
	if balance < reward.CostPoints {
		return nil, ErrInsufficientPoints
	}

	attempt := &Attempt{
		Token:     uuid.NewString(),
		UserID:    userID,
		Reward:    reward,
		State:     StateConfirmationPending,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.pending[attempt.Token] = attempt
	r.mu.Unlock()

	return attempt, nil
}

// Confirm завершает попытку подтверждением и возвращает её для фактического
// списания баллов вызывающей стороной. Повторное подтверждение того же токена
// вернёт ErrConfirmationNotFound.
func (r *Redeemer) Confirm(userID int64, token string) (*Attempt, error) {
	attempt, err := r.take(userID, token)
	if err != nil {
		return nil, err
	}
	attempt.State = StateConfirmed
	return attempt, nil
}

// Cancel завершает попытку отменой. Баланс остаётся нетронутым.
func (r *Redeemer) Cancel(userID int64, token string) error {
	attempt, err := r.take(userID, token)
	if err != nil {
		return err
	}
	attempt.State = StateCancelled
	return nil
}

func (r *Redeemer) take(userID int64, token string) (*Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.pending[token]
	if !ok || attempt.UserID != userID {
		return nil, ErrConfirmationNotFound
	}

	delete(r.pending, token)

	if r.now().Sub(attempt.CreatedAt) > r.ttl {
		attempt.State = StateCancelled
		return nil, ErrConfirmationExpired
	}

	return attempt, nil
}

// Sweep удаляет просроченные попытки. Вызывается периодически из фонового цикла.
func (r *Redeemer) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, attempt := range r.pending {
		if r.now().Sub(attempt.CreatedAt) > r.ttl {
			delete(r.pending, token)
			removed++
		}
	}
	return removed
}
