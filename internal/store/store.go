package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-console/internal/models"
	"order-console/internal/util"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document does not exist in its collection
var ErrNotFound = errors.New("document not found")

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Notifier is told about every committed mutation
type Notifier interface {
	Notify(ctx context.Context, event *models.DocumentChangedEvent) error
}

// Notifiers fans one change out to several notifiers. Every notifier is
// called even when an earlier one fails.
type Notifiers []Notifier

// Notify implements Notifier
func (ns Notifiers) Notify(ctx context.Context, event *models.DocumentChangedEvent) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store is a document store keeping one JSON object per (collection, id)
type Store struct {
	db       *sqlx.DB
	driver   string
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates a new document store on the given SQL driver
func NewStore(driver, databaseURL string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:     db,
		driver: driver,
		logger: util.GetLogger(),
		now:    time.Now,
	}, nil
}

// SetNotifier installs the change notifier; nil disables notifications
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the documents table if it does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(64) NOT NULL,
			id VARCHAR(64) NOT NULL,
			data TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// lockClause returns the row lock suffix for drivers that support it
func (s *Store) lockClause() string {
	if s.driver == DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// notify reports a committed change; failures are logged since the write already landed
func (s *Store) notify(ctx context.Context, collection, id, op string) {
	if s.notifier == nil {
		return
	}
	event := newChangedEvent(collection, id, op, s.now())
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Error("Failed to publish document change",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.String("operation", op),
			zap.Error(err))
	}
}
