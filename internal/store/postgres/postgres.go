// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time checks that PostgresStore implements store.Store and store.DealSource.
var (
	_ store.Store      = (*PostgresStore)(nil)
	_ store.DealSource = (*PostgresStore)(nil)
)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *model.ContractTemplate) error {
	return queryCreateTemplate(ctx, s.db, t)
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.ContractTemplate, error) {
	return queryGetTemplate(ctx, s.db, id)
}

func (s *PostgresStore) GetTemplateVersion(ctx context.Context, id string, version int) (*model.ContractTemplate, error) {
	return queryGetTemplateVersion(ctx, s.db, id, version)
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) {
	return queryListTemplates(ctx, s.db)
}

func (s *PostgresStore) CreateContract(ctx context.Context, c *model.Contract) error {
	return queryCreateContract(ctx, s.db, c)
}

func (s *PostgresStore) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	return queryGetContract(ctx, s.db, id, false)
}

func (s *PostgresStore) GetContractForUpdate(ctx context.Context, id string) (*model.Contract, error) {
	return queryGetContract(ctx, s.db, id, false)
}

func (s *PostgresStore) ListContracts(ctx context.Context, filter model.ContractFilter) ([]*model.Contract, int, error) {
	return queryListContracts(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateContractStatus(ctx context.Context, u store.StatusUpdate) error {
	return queryUpdateContractStatus(ctx, s.db, u)
}

func (s *PostgresStore) MarkContractViewed(ctx context.Context, id string, at time.Time) error {
	return queryMarkContractViewed(ctx, s.db, id, at)
}

func (s *PostgresStore) CreateToken(ctx context.Context, tok *model.SignerToken) error {
	return queryCreateToken(ctx, s.db, tok)
}

func (s *PostgresStore) GetToken(ctx context.Context, token string) (*model.SignerToken, error) {
	return queryGetToken(ctx, s.db, token)
}

func (s *PostgresStore) ListTokens(ctx context.Context, contractID string) ([]*model.SignerToken, error) {
	return queryListTokens(ctx, s.db, contractID)
}

func (s *PostgresStore) MarkTokenUsed(ctx context.Context, token string, at time.Time) error {
	return queryMarkTokenUsed(ctx, s.db, token, at)
}

func (s *PostgresStore) MarkTokenViewed(ctx context.Context, token string, at time.Time) (bool, error) {
	return queryMarkTokenViewed(ctx, s.db, token, at)
}

func (s *PostgresStore) InsertSignature(ctx context.Context, sig *model.Signature) (bool, error) {
	return queryInsertSignature(ctx, s.db, sig)
}

func (s *PostgresStore) ListSignatures(ctx context.Context, contractID string) ([]*model.Signature, error) {
	return queryListSignatures(ctx, s.db, contractID)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, contractID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, contractID)
}

func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	return queryGetDeal(ctx, s.db, id)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateTemplate(ctx context.Context, t *model.ContractTemplate) error {
	return queryCreateTemplate(ctx, s.tx, t)
}

func (s *txStore) GetTemplate(ctx context.Context, id string) (*model.ContractTemplate, error) {
	return queryGetTemplate(ctx, s.tx, id)
}

func (s *txStore) GetTemplateVersion(ctx context.Context, id string, version int) (*model.ContractTemplate, error) {
	return queryGetTemplateVersion(ctx, s.tx, id, version)
}

func (s *txStore) ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) {
	return queryListTemplates(ctx, s.tx)
}

func (s *txStore) CreateContract(ctx context.Context, c *model.Contract) error {
	return queryCreateContract(ctx, s.tx, c)
}

func (s *txStore) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	return queryGetContract(ctx, s.tx, id, false)
}

func (s *txStore) GetContractForUpdate(ctx context.Context, id string) (*model.Contract, error) {
	return queryGetContract(ctx, s.tx, id, true)
}

func (s *txStore) ListContracts(ctx context.Context, filter model.ContractFilter) ([]*model.Contract, int, error) {
	return queryListContracts(ctx, s.tx, filter)
}

func (s *txStore) UpdateContractStatus(ctx context.Context, u store.StatusUpdate) error {
	return queryUpdateContractStatus(ctx, s.tx, u)
}

func (s *txStore) MarkContractViewed(ctx context.Context, id string, at time.Time) error {
	return queryMarkContractViewed(ctx, s.tx, id, at)
}

func (s *txStore) CreateToken(ctx context.Context, tok *model.SignerToken) error {
	return queryCreateToken(ctx, s.tx, tok)
}

func (s *txStore) GetToken(ctx context.Context, token string) (*model.SignerToken, error) {
	return queryGetToken(ctx, s.tx, token)
}

func (s *txStore) ListTokens(ctx context.Context, contractID string) ([]*model.SignerToken, error) {
	return queryListTokens(ctx, s.tx, contractID)
}

func (s *txStore) MarkTokenUsed(ctx context.Context, token string, at time.Time) error {
	return queryMarkTokenUsed(ctx, s.tx, token, at)
}

func (s *txStore) MarkTokenViewed(ctx context.Context, token string, at time.Time) (bool, error) {
	return queryMarkTokenViewed(ctx, s.tx, token, at)
}

func (s *txStore) InsertSignature(ctx context.Context, sig *model.Signature) (bool, error) {
	return queryInsertSignature(ctx, s.tx, sig)
}

func (s *txStore) ListSignatures(ctx context.Context, contractID string) ([]*model.Signature, error) {
	return queryListSignatures(ctx, s.tx, contractID)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, contractID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, contractID)
}

func (s *txStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	return queryGetDeal(ctx, s.tx, id)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
