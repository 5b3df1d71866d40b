package repository

import (
	"database/sql"
	"errors"
	"time"

	"perpbot/internal/models"
)

// Ошибки репозитория журнала сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create создает запись журнала сделок
func (r *TradeRepository) Create(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (asset, kind, side, size_before, size_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		trade.Asset,
		trade.Kind,
		trade.Side,
		trade.SizeBefore,
		trade.SizeAfter,
		trade.CreatedAt,
	).Scan(&trade.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает запись по ID
func (r *TradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, asset, kind, side, size_before, size_after, created_at
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.Asset,
		&trade.Kind,
		&trade.Side,
		&trade.SizeBefore,
		&trade.SizeAfter,
		&trade.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние N записей
func (r *TradeRepository) GetRecent(limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, asset, kind, side, size_before, size_after, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByAsset возвращает записи по конкретному активу
func (r *TradeRepository) GetByAsset(asset string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, asset, kind, side, size_before, size_after, created_at
		FROM trades
		WHERE asset = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, asset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetInTimeRange возвращает записи за период
func (r *TradeRepository) GetInTimeRange(from, to time.Time) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, asset, kind, side, size_before, size_after, created_at
		FROM trades
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// DeleteOlderThan удаляет записи старше указанной даты
func (r *TradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM trades WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество записей
func (r *TradeRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM trades`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByKind возвращает количество записей определенного вида
func (r *TradeRepository) CountByKind(kind string) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE kind = $1`

	var count int
	err := r.db.QueryRow(query, kind).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Asset,
			&trade.Kind,
			&trade.Side,
			&trade.SizeBefore,
			&trade.SizeAfter,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
