package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-console/internal/models"
	"order-console/internal/util"

	"github.com/google/uuid"
)

// Document is one stored record; Data holds its JSON object
type Document struct {
	Collection string `db:"collection" json:"collection"`
	ID         string `db:"id" json:"id"`
	Data       string `db:"data" json:"data"`
	UpdatedAt  int64  `db:"updated_at" json:"updated_at"`
}

// Fields decodes the document body
func (d Document) Fields() (map[string]any, error) {
	fields := make(map[string]any)
	if d.Data == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(d.Data), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", d.Collection, d.ID, err)
	}
	return fields, nil
}

func newChangedEvent(collection, id, op string, at time.Time) *models.DocumentChangedEvent {
	return &models.DocumentChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDocumentChanged,
			Timestamp: at,
		},
		Collection: collection,
		DocumentID: id,
		Operation:  op,
	}
}

// List retrieves every document of a collection
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	docs := []Document{}
	err := s.db.SelectContext(ctx, &docs,
		s.db.Rebind("SELECT collection, id, data, updated_at FROM documents WHERE collection = ? ORDER BY id"),
		collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

// Get retrieves one document
func (s *Store) Get(ctx context.Context, collection, id string) (*Document, error) {
	var doc Document
	err := s.db.GetContext(ctx, &doc,
		s.db.Rebind("SELECT collection, id, data, updated_at FROM documents WHERE collection = ? AND id = ?"),
		collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Insert stores a new document under a generated id
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, span := util.StartSpan(ctx, "Store.Insert")
	defer span.End()

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)"),
		collection, id, string(data), s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	s.notify(ctx, collection, id, models.OpInsert)
	return id, nil
}

// Write merges field updates into an existing document
func (s *Store) Write(ctx context.Context, collection, id string, updates map[string]any) error {
	ctx, span := util.StartSpan(ctx, "Store.Write")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.GetContext(ctx, &data,
		tx.Rebind("SELECT data FROM documents WHERE collection = ? AND id = ?"+s.lockClause()),
		collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}

	doc := Document{Collection: collection, ID: id, Data: data}
	fields, err := doc.Fields()
	if err != nil {
		return err
	}
	for k, v := range updates {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?"),
		string(merged), s.now().UnixMilli(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notify(ctx, collection, id, models.OpUpdate)
	return nil
}

// Delete removes a document; ErrNotFound when it was already absent
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := util.StartSpan(ctx, "Store.Delete")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM documents WHERE collection = ? AND id = ?"),
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	s.notify(ctx, collection, id, models.OpDelete)
	return nil
}
