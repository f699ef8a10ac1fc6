// Package gormsource provides record source and batch writer implementations
// over a relational table through GORM. Sequences are ordered by the key
// column and resumed with keyset pagination, so a resume token stays valid
// across process restarts.
package gormsource

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/serialization"
)

// cursorPayload is the serialized form of a resume token minted by this source.
type cursorPayload struct {
	// LastKey is the key of the last yielded record. The reopened sequence
	// starts strictly after it.
	LastKey string `json:"last_key"`
	// Started distinguishes "nothing yielded yet" from a zero key value.
	Started bool `json:"started"`
}

// Source implements port.RecordSource over GORM tables.
type Source struct {
	db        *gorm.DB
	keyColumn string
	fetchSize int
}

// Option customizes a Source.
type Option func(*Source)

// WithKeyColumn overrides the ordering key column. The default is "id".
func WithKeyColumn(column string) Option {
	return func(s *Source) { s.keyColumn = column }
}

// WithFetchSize overrides the page size used when reading from the table.
func WithFetchSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.fetchSize = n
		}
	}
}

// NewSource creates a Source over the given GORM handle.
func NewSource(db *gorm.DB, opts ...Option) *Source {
	s := &Source{
		db:        db,
		keyColumn: "id",
		fetchSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open validates the query and positions a cursor at the given resume token.
// A query that filters on the key column cannot be resumed with keyset
// pagination and is rejected here, before any record is read.
func (s *Source) Open(ctx context.Context, q port.Query, token model.ResumeToken) (port.RecordCursor, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("query has no collection")
	}
	if _, ok := q.Filter[s.keyColumn]; ok {
		return nil, fmt.Errorf("query filters on the ordering column %q, which breaks resumption", s.keyColumn)
	}

	var payload cursorPayload
	if !token.IsZero() {
		if err := serialization.DecodeToken(string(token), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode resume token: %w", err)
		}
	}

	return &cursor{
		source:  s,
		query:   q,
		lastKey: payload.LastKey,
		started: payload.Started,
	}, nil
}

// cursor is one opened traversal. It reads the table one page at a time,
// always strictly after the last yielded key.
type cursor struct {
	source  *Source
	query   port.Query
	lastKey string
	started bool

	page      []port.Record
	pageIndex int
	exhausted bool
}

// Next yields the next record, fetching the next page when the buffered one
// is consumed.
func (c *cursor) Next(ctx context.Context) (*port.Record, error) {
	if c.pageIndex >= len(c.page) {
		if c.exhausted {
			return nil, port.ErrNoMoreRecords
		}
		if err := c.fetchPage(ctx); err != nil {
			return nil, err
		}
		if len(c.page) == 0 {
			return nil, port.ErrNoMoreRecords
		}
	}

	rec := c.page[c.pageIndex]
	c.pageIndex++
	c.lastKey = rec.Key
	c.started = true
	return &rec, nil
}

// fetchPage loads the next page of records after lastKey.
func (c *cursor) fetchPage(ctx context.Context) error {
	s := c.source

	q := s.db.WithContext(ctx).
		Table(c.query.Collection).
		Order(s.keyColumn + " ASC").
		Limit(s.fetchSize)
	for column, value := range c.query.Filter {
		q = q.Where(column+" = ?", value)
	}
	if c.started {
		q = q.Where(s.keyColumn+" > ?", c.lastKey)
	}
	if c.query.KeysOnly {
		q = q.Select(s.keyColumn)
	}

	var rows []map[string]interface{}
	if err := q.Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to read page from %s: %w", c.query.Collection, err)
	}

	c.page = c.page[:0]
	c.pageIndex = 0
	for _, row := range rows {
		key := keyToString(row[s.keyColumn])
		if key == "" {
			return fmt.Errorf("record in %s has an empty %s value", c.query.Collection, s.keyColumn)
		}
		fields := map[string]interface{}{}
		if !c.query.KeysOnly {
			fields = row
		}
		c.page = append(c.page, port.Record{Key: key, Fields: fields})
	}
	if len(rows) < s.fetchSize {
		c.exhausted = true
	}
	return nil
}

// Token returns the resume token positioned after the last yielded record.
func (c *cursor) Token() (model.ResumeToken, error) {
	token, err := serialization.EncodeToken(cursorPayload{LastKey: c.lastKey, Started: c.started})
	if err != nil {
		return "", fmt.Errorf("failed to encode resume token: %w", err)
	}
	return model.ResumeToken(token), nil
}

// Close releases the cursor. The underlying connection is pooled by GORM.
func (c *cursor) Close() error {
	c.page = nil
	c.exhausted = true
	return nil
}

// keyToString normalizes a database key value into the string identity used
// by the engine.
func keyToString(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	default:
		return fmt.Sprintf("%v", k)
	}
}

var _ port.RecordSource = (*Source)(nil)
var _ port.RecordCursor = (*cursor)(nil)
