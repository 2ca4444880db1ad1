package contact

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

type Repository interface {
	Create(ctx context.Context, m Message) (Message, error)
	// List returns messages newest first.
	List(ctx context.Context) ([]Message, error)
}

type InMemoryRepository struct {
	mu       sync.RWMutex
	messages []Message
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Create(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]Message{}, r.messages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m Message) (Message, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Name, m.Email, m.Subject, m.Message, m.Status, m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert contact message: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, subject, message, status, created_at
		FROM contact_messages
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
