package gormsource

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/riptide/pkg/bulk/core/port"
)

// Writer implements port.BatchWriter over one GORM table. Puts are upserts
// keyed by the key column; deletes are key-list deletions where missing keys
// are not errors.
type Writer struct {
	db         *gorm.DB
	collection string
	keyColumn  string
}

// NewWriter creates a Writer bound to the given table.
func NewWriter(db *gorm.DB, collection string, opts ...Option) *Writer {
	s := NewSource(db, opts...)
	return &Writer{
		db:         db,
		collection: collection,
		keyColumn:  s.keyColumn,
	}
}

// PutBatch writes the given records in one statement, overwriting by key.
func (w *Writer) PutBatch(ctx context.Context, records []port.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		row := make(map[string]interface{}, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			row[k] = v
		}
		row[w.keyColumn] = rec.Key
		rows = append(rows, row)
	}

	err := w.db.WithContext(ctx).
		Table(w.collection).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: w.keyColumn}},
			UpdateAll: true,
		}).
		Create(rows).Error
	if err != nil {
		return fmt.Errorf("failed to put batch of %d records into %s: %w", len(records), w.collection, err)
	}
	return nil
}

// DeleteBatch removes the records with the given keys.
func (w *Writer) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	err := w.db.WithContext(ctx).
		Table(w.collection).
		Where(w.keyColumn+" IN ?", keys).
		Delete(nil).Error
	if err != nil {
		return fmt.Errorf("failed to delete batch of %d keys from %s: %w", len(keys), w.collection, err)
	}
	return nil
}

var _ port.BatchWriter = (*Writer)(nil)
