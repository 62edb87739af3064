package ctxrepo

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
		Host: "localhost", Port: 5432, User: "postgres", Database: "conductor",
		SSLMode: "disable", MaxOpenConns: 25, MaxIdleConns: 5,
		ConnMaxLifetime: 5 * time.Minute, ConnectTimeout: 10 * time.Second,
	}
}

// PostgresRepository is the durable Repository backend.
type PostgresRepository struct {
	db *sql.DB

	stmtCreate *sql.Stmt
	stmtGet    *sql.Stmt
	stmtUpdate *sql.Stmt
	stmtDelete *sql.Stmt
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
		return nil, fmt.Errorf("ctxrepo: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ctxrepo: ping database: %w", err)
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
	r.stmtCreate, err = r.db.Prepare(`
		INSERT INTO agent_contexts (agent_id, agent, flow_type, sandbox_id, status, last_message, last_message_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("ctxrepo: prepare create: %w", err)
	}

	r.stmtGet, err = r.db.Prepare(`
		SELECT agent_id, agent, flow_type, sandbox_id, status, last_message, last_message_at, metadata, created_at, updated_at
		FROM agent_contexts WHERE agent_id = $1
	`)
	if err != nil {
		return fmt.Errorf("ctxrepo: prepare get: %w", err)
	}

	r.stmtUpdate, err = r.db.Prepare(`
		UPDATE agent_contexts
		SET agent = $1, flow_type = $2, sandbox_id = $3, status = $4, last_message = $5,
		    last_message_at = $6, metadata = $7, updated_at = $8
		WHERE agent_id = $9
	`)
	if err != nil {
		return fmt.Errorf("ctxrepo: prepare update: %w", err)
	}

	r.stmtDelete, err = r.db.Prepare(`DELETE FROM agent_contexts WHERE agent_id = $1`)
	if err != nil {
		return fmt.Errorf("ctxrepo: prepare delete: %w", err)
	}
	return nil
}

// Close releases the connection pool and prepared statements.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Create(ctx context.Context, ac *models.AgentContext) error {
	agentJSON, err := json.Marshal(ac.Agent)
	if err != nil {
		return fmt.Errorf("ctxrepo: marshal agent: %w", err)
	}
	metadataJSON, err := json.Marshal(ac.Metadata)
	if err != nil {
		return fmt.Errorf("ctxrepo: marshal metadata: %w", err)
	}

	_, err = r.stmtCreate.ExecContext(ctx,
		ac.AgentID, agentJSON, ac.FlowType, ac.SandboxID, string(ac.Status),
		ac.LastMessage, ac.LastMessageAt, metadataJSON, ac.CreatedAt, ac.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ctxrepo: create: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, agentID string) (*models.AgentContext, error) {
	ac, err := scanAgentContext(r.stmtGet.QueryRowContext(ctx, agentID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ctxrepo: get: %w", err)
	}
	return ac, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ac *models.AgentContext) error {
	agentJSON, err := json.Marshal(ac.Agent)
	if err != nil {
		return fmt.Errorf("ctxrepo: marshal agent: %w", err)
	}
	metadataJSON, err := json.Marshal(ac.Metadata)
	if err != nil {
		return fmt.Errorf("ctxrepo: marshal metadata: %w", err)
	}
	ac.UpdatedAt = time.Now()

	result, err := r.stmtUpdate.ExecContext(ctx,
		agentJSON, ac.FlowType, ac.SandboxID, string(ac.Status), ac.LastMessage,
		ac.LastMessageAt, metadataJSON, ac.UpdatedAt, ac.AgentID,
	)
	if err != nil {
		return fmt.Errorf("ctxrepo: update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ctxrepo: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, agentID string) error {
	result, err := r.stmtDelete.ExecContext(ctx, agentID)
	if err != nil {
		return fmt.Errorf("ctxrepo: delete: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ctxrepo: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*models.AgentContext, error) {
	query := `
		SELECT agent_id, agent, flow_type, sandbox_id, status, last_message, last_message_at, metadata, created_at, updated_at
		FROM agent_contexts WHERE 1=1
	`
	var args []interface{}
	argPos := 1
	if opts.UserID != "" {
		query += fmt.Sprintf(" AND agent->>'user_id' = $%d", argPos)
		args = append(args, opts.UserID)
		argPos++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(opts.Status))
		argPos++
	}
	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, opts.Limit)
		argPos++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ctxrepo: list: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentContext
	for rows.Next() {
		ac, err := scanAgentContext(rows)
		if err != nil {
			return nil, fmt.Errorf("ctxrepo: scan: %w", err)
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentContext(row rowScanner) (*models.AgentContext, error) {
	var ac models.AgentContext
	var agentJSON, metadataJSON []byte
	var status string
	if err := row.Scan(
		&ac.AgentID, &agentJSON, &ac.FlowType, &ac.SandboxID, &status,
		&ac.LastMessage, &ac.LastMessageAt, &metadataJSON, &ac.CreatedAt, &ac.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ac.Status = models.AgentStatus(status)
	if len(agentJSON) > 0 {
		if err := json.Unmarshal(agentJSON, &ac.Agent); err != nil {
			return nil, fmt.Errorf("unmarshal agent: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &ac.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &ac, nil
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
