package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlGetProceso = `
        SELECT id, user_id, patente, estado, resultado, pdf_filename, error_message
        FROM proceso
        WHERE id = $1`

	sqlGetCredentials = `
        SELECT user_id, enargas_user, enargas_password_encrypted
        FROM enargas_credenciales
        WHERE user_id = $1`

	sqlSaveResult = `
        UPDATE proceso
        SET estado = $2, resultado = $3, pdf_data = $4, pdf_filename = $5,
            error_message = $6, updated_at = NOW()
        WHERE id = $1`
)

// PostgresStore reads and updates the tables shared with the web
// application.
type PostgresStore struct {
	pool DBPool
	log  *logging.Logger
}

// NewPostgresStore creates a store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, log *logging.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if log == nil {
		log = logging.NewLogger("store")
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) GetProceso(ctx context.Context, id int64) (*Proceso, error) {
	var p Proceso
	err := s.pool.QueryRow(ctx, sqlGetProceso, id).Scan(
		&p.ID, &p.UserID, &p.Patente, &p.Estado, &p.Resultado, &p.PDFFilename, &p.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("proceso %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load proceso %d: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) GetCredentials(ctx context.Context, userID int64) (*StoredCredentials, error) {
	var c StoredCredentials
	err := s.pool.QueryRow(ctx, sqlGetCredentials, userID).Scan(&c.UserID, &c.Username, &c.EncryptedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("credentials of user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials of user %d: %w", userID, err)
	}
	return &c, nil
}

// SaveResult overwrites every result column of the proceso.
func (s *PostgresStore) SaveResult(ctx context.Context, id int64, r Result) error {
	tag, err := s.pool.Exec(ctx, sqlSaveResult, id, r.Estado, r.Resultado, r.PDFData, r.PDFFilename, r.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to save result of proceso %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proceso %d: %w", id, ErrNotFound)
	}
	s.log.Debugf("Saved proceso %d as %s", id, r.Estado)
	return nil
}
