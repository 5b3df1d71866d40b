package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"perpbot/internal/models"
)

// Ошибки репозитория журнала решений
var (
	ErrDecisionNotFound = errors.New("decision not found")
)

// DecisionRepository - работа с таблицей decisions
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository создает новый экземпляр репозитория
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create создает запись о решении ансамбля
func (r *DecisionRepository) Create(decision *models.DecisionRecord) error {
	query := `
		INSERT INTO decisions (asset, action, strength, method, contributing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		decision.Asset,
		decision.Action,
		decision.Strength,
		decision.Method,
		pq.Array(decision.Contributing),
		decision.CreatedAt,
	).Scan(&decision.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает решение по ID
func (r *DecisionRepository) GetByID(id int) (*models.DecisionRecord, error) {
	query := `
		SELECT id, asset, action, strength, method, contributing, created_at
		FROM decisions
		WHERE id = $1`

	decision := &models.DecisionRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&decision.ID,
		&decision.Asset,
		&decision.Action,
		&decision.Strength,
		&decision.Method,
		pq.Array(&decision.Contributing),
		&decision.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}

	return decision, nil
}

// GetRecent возвращает последние N решений
func (r *DecisionRepository) GetRecent(limit int) ([]*models.DecisionRecord, error) {
	query := `
		SELECT id, asset, action, strength, method, contributing, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetByAsset возвращает решения по конкретному активу
func (r *DecisionRepository) GetByAsset(asset string, limit int) ([]*models.DecisionRecord, error) {
	query := `
		SELECT id, asset, action, strength, method, contributing, created_at
		FROM decisions
		WHERE asset = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, asset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// DeleteOlderThan удаляет решения старше указанной даты
func (r *DecisionRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM decisions WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество решений
func (r *DecisionRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM decisions`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func scanDecisions(rows *sql.Rows) ([]*models.DecisionRecord, error) {
	var decisions []*models.DecisionRecord
	for rows.Next() {
		decision := &models.DecisionRecord{}
		err := rows.Scan(
			&decision.ID,
			&decision.Asset,
			&decision.Action,
			&decision.Strength,
			&decision.Method,
			pq.Array(&decision.Contributing),
			&decision.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return decisions, nil
}
