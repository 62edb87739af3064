package convrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/conductorhq/conductor/pkg/models"
)

// PostgresConfig holds connection settings, grounded on
// internal/sessions/cockroach.go's CockroachConfig.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane local-development defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "conductor",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresRepository is the durable Repository backend.
type PostgresRepository struct {
	db *sql.DB

	stmtNextSequence *sql.Stmt
	stmtAppend       *sql.Stmt
	stmtReplay       *sql.Stmt
	stmtGet          *sql.Stmt
	stmtLatest       *sql.Stmt
}

// NewPostgresRepository opens a connection and prepares statements.
func NewPostgresRepository(cfg PostgresConfig) (*PostgresRepository, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		int(cfg.ConnectTimeout.Seconds()),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("convrepo: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("convrepo: ping database: %w", err)
	}

	r := &PostgresRepository{db: db}
	if err := r.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) prepareStatements() error {
	var err error

	r.stmtNextSequence, err = r.db.Prepare(`
		INSERT INTO agent_sequences (agent_id, next_sequence)
		VALUES ($1, 1)
		ON CONFLICT (agent_id) DO UPDATE SET next_sequence = agent_sequences.next_sequence + 1
		RETURNING next_sequence
	`)
	if err != nil {
		return fmt.Errorf("convrepo: prepare next sequence: %w", err)
	}

	r.stmtAppend, err = r.db.Prepare(`
		INSERT INTO conversation_events (id, agent_id, sequence, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("convrepo: prepare append: %w", err)
	}

	r.stmtReplay, err = r.db.Prepare(`
		SELECT id, agent_id, sequence, type, payload, created_at
		FROM conversation_events
		WHERE agent_id = $1 AND sequence >= $2
		ORDER BY sequence ASC
	`)
	if err != nil {
		return fmt.Errorf("convrepo: prepare replay: %w", err)
	}

	r.stmtGet, err = r.db.Prepare(`
		SELECT id, agent_id, sequence, type, payload, created_at
		FROM conversation_events WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("convrepo: prepare get: %w", err)
	}

	r.stmtLatest, err = r.db.Prepare(`
		SELECT COALESCE(MAX(sequence), 0) FROM conversation_events WHERE agent_id = $1
	`)
	if err != nil {
		return fmt.Errorf("convrepo: prepare latest: %w", err)
	}

	return nil
}

// Close releases the connection pool and prepared statements.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) NextSequence(ctx context.Context, agentID string) (uint64, error) {
	var seq uint64
	if err := r.stmtNextSequence.QueryRowContext(ctx, agentID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("convrepo: next sequence: %w", err)
	}
	return seq, nil
}

// Append persists event. A unique-constraint violation on (agent_id,
// sequence) is translated to ErrSequenceConflict so callers can retry with
// a freshly assigned sequence rather than treat it as a generic failure.
func (r *PostgresRepository) Append(ctx context.Context, event models.ConversationEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("convrepo: marshal payload: %w", err)
	}

	_, err = r.stmtAppend.ExecContext(ctx,
		event.ID, event.AgentID, event.Sequence, string(event.Type), payload, event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSequenceConflict
		}
		return fmt.Errorf("convrepo: append event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Replay(ctx context.Context, agentID string, fromSequence uint64) ([]models.ConversationEvent, error) {
	rows, err := r.stmtReplay.QueryContext(ctx, agentID, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("convrepo: replay: %w", err)
	}
	defer rows.Close()

	var events []models.ConversationEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convrepo: replay iteration: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (models.ConversationEvent, error) {
	row := r.stmtGet.QueryRowContext(ctx, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return models.ConversationEvent{}, ErrNotFound
	}
	if err != nil {
		return models.ConversationEvent{}, fmt.Errorf("convrepo: get event: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, agentID string) (uint64, error) {
	var seq uint64
	if err := r.stmtLatest.QueryRowContext(ctx, agentID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("convrepo: latest: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.ConversationEvent, error) {
	var e models.ConversationEvent
	var typ string
	var payload []byte
	if err := row.Scan(&e.ID, &e.AgentID, &e.Sequence, &typ, &payload, &e.CreatedAt); err != nil {
		return models.ConversationEvent{}, err
	}
	e.Type = models.AgentEventType(typ)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return models.ConversationEvent{}, fmt.Errorf("convrepo: unmarshal payload: %w", err)
		}
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate")
}
