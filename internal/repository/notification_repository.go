package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"perpbot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создает новое уведомление
func (r *NotificationRepository) Create(n *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, asset, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	meta, err := marshalMeta(n.Meta)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		query,
		n.Timestamp,
		n.Type,
		n.Severity,
		n.Asset,
		n.Message,
		meta,
	).Scan(&n.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, asset, message, meta
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByTypes возвращает уведомления определенных типов
func (r *NotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, asset, message, meta
		FROM notifications
		WHERE type = ANY($1)
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, pq.Array(types), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByAsset возвращает уведомления по конкретному активу
func (r *NotificationRepository) GetByAsset(asset string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, asset, message, meta
		FROM notifications
		WHERE asset = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, asset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// DeleteAll очищает журнал уведомлений
func (r *NotificationRepository) DeleteAll() error {
	query := `DELETE FROM notifications`

	_, err := r.db.Exec(query)
	return err
}

// DeleteOlderThan удаляет уведомления старше указанной даты
func (r *NotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE timestamp < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество уведомлений
func (r *NotificationRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM notifications`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func marshalMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var meta []byte
		err := rows.Scan(
			&n.ID,
			&n.Timestamp,
			&n.Type,
			&n.Severity,
			&n.Asset,
			&n.Message,
			&meta,
		)
		if err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Meta); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}
