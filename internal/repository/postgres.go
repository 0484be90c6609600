// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/kuriftu/rewards-system/internal/loyalty"
	"github.com/kuriftu/rewards-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с занятым именем или почтой.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoRoomsAvailable возвращается, если свободных номеров запрошенного типа нет.
	ErrNoRoomsAvailable = errors.New("no rooms available")
	// ErrBookingNotFound возвращается, если бронирование не найдено.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrNotFound возвращается для отсутствующих записей дашбордов.
	ErrNotFound = errors.New("record not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках БД: сбоях сериализации,
// дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Ping проверяет доступность базы данных. Используется обработчиком /test-db.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя с ролью и бронзовым уровнем лояльности.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, email string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, hex.EncodeToString(passwordHash), string(role),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, username, email, password, role, tier, created_at FROM users WHERE email = $1`, email)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, username, email, password, role, tier, created_at FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)

	var (
		u        model.User
		password string
		role     string
		tier     string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &password, &role, &tier, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	hash, err := hex.DecodeString(password)
	if err != nil {
		return nil, fmt.Errorf("decode password hash: %w", err)
	}

	u.PasswordHash = hash
	u.Role = model.Role(role)
	u.Tier = model.Tier(tier)
	return &u, nil
}

// UpdateUserTier изменяет уровень лояльности пользователя. Единственный путь
// смены уровня: автоматического повышения по порогам баллов нет.
func (r *PostgresRepository) UpdateUserTier(ctx context.Context, userID int64, tier model.Tier) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET tier = $2 WHERE id = $1`,
		userID, string(tier),
	)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateBooking сохраняет бронирование со статусом pending и начисляет баллы.
// Для категории room бронированию назначается свободный номер нужного типа,
// который переводится в статус occupied.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if b.Category == model.CategoryRoom {
		var id int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM rooms
			 WHERE room_type = $1 AND status = 'available'
			 ORDER BY room_number
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			b.ItemID,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.Booking{}, fmt.Errorf("%w: %s", ErrNoRoomsAvailable, b.ItemID)
			}
			return model.Booking{}, fmt.Errorf("select room: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE rooms SET status = 'occupied' WHERE id = $1`, id); err != nil {
			return model.Booking{}, fmt.Errorf("occupy room: %w", err)
		}
		b.RoomID = &id
	}

	b.Status = model.BookingStatusPending
	err = tx.QueryRow(ctx,
		`INSERT INTO bookings
		 (user_id, room_id, check_in_date, check_out_date, total_price, status,
		  item_id, item_name, category, guest_count, points_earned)
		 VALUES ($1, $2, $3, $4, $5::numeric / 100, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		b.UserID, b.RoomID, b.CheckIn, b.CheckOut, b.TotalPriceCents, string(b.Status),
		b.ItemID, b.ItemName, string(b.Category), b.GuestCount, b.PointsEarned,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if b.PointsEarned > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO points_ledger (user_id, description, points) VALUES ($1, $2, $3)`,
			b.UserID, "Booking: "+b.ItemName, b.PointsEarned,
		)
		if err != nil {
			return model.Booking{}, fmt.Errorf("insert points credit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, fmt.Errorf("commit tx: %w", err)
	}

	return b, nil
}

const bookingColumns = `id, user_id, room_id, check_in_date, check_out_date,
	(total_price * 100)::bigint, status, item_id, item_name, category, guest_count, points_earned, created_at`

// GetBookingsByUser возвращает бронирования пользователя, новые первыми.
func (r *PostgresRepository) GetBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	var res []model.Booking
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("select bookings: %w", err)
		}
		defer rows.Close()

		res, err = scanBookings(rows)
		return err
	})
	return res, err
}

// ListBookings возвращает все бронирования для дашбордов персонала.
func (r *PostgresRepository) ListBookings(ctx context.Context) ([]model.Booking, error) {
	var res []model.Booking
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`,
		)
		if err != nil {
			return fmt.Errorf("select bookings: %w", err)
		}
		defer rows.Close()

		res, err = scanBookings(rows)
		return err
	})
	return res, err
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var res []model.Booking
	for rows.Next() {
		var (
			b        model.Booking
			status   string
			category string
		)
		err := rows.Scan(&b.ID, &b.UserID, &b.RoomID, &b.CheckIn, &b.CheckOut,
			&b.TotalPriceCents, &status, &b.ItemID, &b.ItemName, &category, &b.GuestCount,
			&b.PointsEarned, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Status = model.BookingStatus(status)
		b.Category = model.Category(category)
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateBookingStatus изменяет статус бронирования. Отмена или завершение
// освобождает назначенный номер.
func (r *PostgresRepository) UpdateBookingStatus(ctx context.Context, bookingID int64, status model.BookingStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var roomID *int64
	err = tx.QueryRow(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1 RETURNING room_id`,
		bookingID, string(status),
	).Scan(&roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("update booking: %w", err)
	}

	if roomID != nil && (status == model.BookingStatusCancelled || status == model.BookingStatusCompleted) {
		if _, err := tx.Exec(ctx, `UPDATE rooms SET status = 'available' WHERE id = $1`, *roomID); err != nil {
			return fmt.Errorf("release room: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListRooms возвращает номерной фонд гостиницы.
func (r *PostgresRepository) ListRooms(ctx context.Context) ([]model.Room, error) {
	var res []model.Room
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, room_number, room_type, (price_per_night * 100)::bigint, status, created_at
			 FROM rooms ORDER BY room_number`,
		)
		if err != nil {
			return fmt.Errorf("select rooms: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var (
				room   model.Room
				status string
			)
			if err := rows.Scan(&room.ID, &room.RoomNumber, &room.RoomType, &room.PricePerNightCents, &status, &room.CreatedAt); err != nil {
				return fmt.Errorf("scan room: %w", err)
			}
			room.Status = model.RoomStatus(status)
			res = append(res, room)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	return res, err
}

// GetBalance возвращает доступный баланс и сумму всех списаний пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (int64, int64, error) {
	var credited, redeemed int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT
			   COALESCE(SUM(points) FILTER (WHERE points > 0), 0),
			   COALESCE(-SUM(points) FILTER (WHERE points < 0), 0)
			 FROM points_ledger
			 WHERE user_id = $1`,
			userID,
		).Scan(&credited, &redeemed)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("sum points ledger: %w", err)
	}

	current := credited - redeemed
	if current < 0 {
		current = 0
	}

	return current, redeemed, nil
}

// GetPointsHistory возвращает историю начислений и списаний, новые первыми.
func (r *PostgresRepository) GetPointsHistory(ctx context.Context, userID int64) ([]model.PointsEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, description, points, created_at
		 FROM points_ledger
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select points history: %w", err)
	}
	defer rows.Close()

	var res []model.PointsEntry
	for rows.Next() {
		var e model.PointsEntry
		if err := rows.Scan(&e.ID, &e.Description, &e.Points, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// RedeemPoints списывает стоимость вознаграждения с баланса пользователя.
// Строка пользователя блокируется, чтобы параллельные списания не увели баланс
// ниже нуля; при нехватке баллов возвращает loyalty.ErrInsufficientPoints.
func (r *PostgresRepository) RedeemPoints(ctx context.Context, userID int64, reward model.Reward) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1`,
		userID,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("sum points ledger: %w", err)
	}

	if current < reward.CostPoints {
		return loyalty.ErrInsufficientPoints
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO points_ledger (user_id, description, points) VALUES ($1, $2, $3)`,
		userID, "Reward: "+reward.Name, -reward.CostPoints,
	)
	if err != nil {
		return fmt.Errorf("insert points debit: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO redemptions (user_id, reward_id, reward_name, points_spent) VALUES ($1, $2, $3, $4)`,
		userID, reward.ID, reward.Name, reward.CostPoints,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CreateFeedback сохраняет отзыв гостя.
func (r *PostgresRepository) CreateFeedback(ctx context.Context, f model.Feedback) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO feedback (customer_name, customer_email, rating, message, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		f.CustomerName, f.CustomerEmail, f.Rating, f.Message, string(model.FeedbackStatusNew),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	return id, nil
}

// ListFeedback возвращает отзывы гостей, новые первыми.
func (r *PostgresRepository) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_name, customer_email, rating, message, status, created_at
		 FROM feedback ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select feedback: %w", err)
	}
	defer rows.Close()

	var res []model.Feedback
	for rows.Next() {
		var (
			f      model.Feedback
			status string
		)
		if err := rows.Scan(&f.ID, &f.CustomerName, &f.CustomerEmail, &f.Rating, &f.Message, &status, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.Status = model.FeedbackStatus(status)
		res = append(res, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateFeedbackStatus изменяет состояние обращения.
func (r *PostgresRepository) UpdateFeedbackStatus(ctx context.Context, id int64, status model.FeedbackStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE feedback SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTask создаёт задачу персонала.
func (r *PostgresRepository) CreateTask(ctx context.Context, t model.Task) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, assigned_to, priority, status, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.Title, t.Description, t.AssignedTo, t.Priority, string(model.TaskStatusPending), t.DueDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// ListTasks возвращает задачи персонала, новые первыми.
func (r *PostgresRepository) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, assigned_to, priority, status, due_date, created_at
		 FROM tasks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var res []model.Task
	for rows.Next() {
		var (
			t      model.Task
			status string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.Priority, &status, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = model.TaskStatus(status)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateTaskStatus изменяет состояние задачи.
func (r *PostgresRepository) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAnnouncement публикует объявление.
func (r *PostgresRepository) CreateAnnouncement(ctx context.Context, a model.Announcement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO announcements (title, body, type) VALUES ($1, $2, $3) RETURNING id`,
		a.Title, a.Body, string(a.Type),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert announcement: %w", err)
	}
	return id, nil
}

// ListAnnouncements возвращает объявления, новые первыми.
func (r *PostgresRepository) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, body, type, created_at FROM announcements ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select announcements: %w", err)
	}
	defer rows.Close()

	var res []model.Announcement
	for rows.Next() {
		var (
			a     model.Announcement
			aType string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &aType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		a.Type = model.AnnouncementType(aType)
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DeleteAnnouncement удаляет объявление.
func (r *PostgresRepository) DeleteAnnouncement(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
