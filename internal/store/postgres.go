// Package store keeps rendered documents in Postgres for deployments that do
// not upload them to the order service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jogardn/saleco-docs/pkg/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("document not found")

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// OpenDatabase connects and waits for the database to accept connections.
func OpenDatabase(ctx context.Context, config DatabaseConfig, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info("Database connection established")
			return db, nil
		}
		logger.Info("Waiting for database...")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("database not reachable: %w", err)
}

type PostgresStore struct {
	db            *sql.DB
	publicBaseURL string
	logger        *logrus.Logger
}

func NewPostgresStore(db *sql.DB, publicBaseURL string, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:            db,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *PostgresStore) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		document_id VARCHAR(255) PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		content BYTEA NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Upload stores the artifact, replacing any earlier rendering of the same
// document, and returns the URL it is served from.
func (s *PostgresStore) Upload(ctx context.Context, documentID string, data []byte, filename string) (string, error) {
	if documentID == "" {
		return "", errors.New("document id is required")
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, filename, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (document_id) DO UPDATE
		SET filename = EXCLUDED.filename, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		documentID, filename, data, now)
	if err != nil {
		return "", fmt.Errorf("failed to save document: %w", err)
	}

	url := s.DocumentURL(documentID)
	s.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"bytes":       len(data),
	}).Info("Document stored")
	return url, nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID string) (*models.RenderedDocument, error) {
	doc := &models.RenderedDocument{DocumentID: documentID}
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, content, updated_at FROM documents WHERE document_id = $1`, documentID,
	).Scan(&doc.Filename, &doc.Bytes, &doc.RenderedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	doc.URL = s.DocumentURL(documentID)
	return doc, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) DocumentURL(documentID string) string {
	return s.publicBaseURL + "/documents/" + url.PathEscape(documentID)
}
