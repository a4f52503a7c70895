// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package sqlite provides a SQLite-backed aggregate event store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/tochemey/eskit/aggregate"
	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
)

const schema = `CREATE TABLE IF NOT EXISTS aggregate_events (
  stream     TEXT    NOT NULL,
  sequence   INTEGER NOT NULL,
  event_type TEXT    NOT NULL,
  content    BLOB    NOT NULL,
  occurred   INTEGER NOT NULL,
  PRIMARY KEY (stream, sequence)
)`

// EventStore persists aggregate events in SQLite.
// Event contents must be protobuf messages: they are stored as google.protobuf.Any and
// decoded with the global registry when replayed.
type EventStore struct {
	sqlDB *sql.DB
}

var _ aggregate.EventStore = (*EventStore)(nil)

// Open opens the SQLite event store at path and creates its table when needed
func Open(path string) (*EventStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &EventStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (s *EventStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ReplayEvents fetches the events of an aggregate root from a given sequence number (inclusive)
func (s *EventStore) ReplayEvents(ctx context.Context, id identity.ClusterIdentity, fromSequenceNumber uint64) ([]aggregate.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sequence, event_type, content, occurred FROM aggregate_events
		 WHERE stream = ? AND sequence >= ? ORDER BY sequence`,
		id.String(), int64(fromSequenceNumber))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []aggregate.Event
	for rows.Next() {
		var (
			sequence  int64
			eventType string
			content   []byte
			occurred  int64
		)
		if err := rows.Scan(&sequence, &eventType, &content, &occurred); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		decoded, err := decode(content)
		if err != nil {
			return nil, fmt.Errorf("decode event %d of %s: %w", sequence, id, err)
		}
		events = append(events, aggregate.Event{
			Type:     eventType,
			Content:  decoded,
			Sequence: uint64(sequence),
			Occurred: time.UnixMilli(occurred).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// WriteEvents appends events to the stream of an aggregate root
func (s *EventStore) WriteEvents(ctx context.Context, id identity.ClusterIdentity, expectedVersion uint64, events []aggregate.Event) ([]aggregate.Event, error) {
	stream := id.String()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var actual int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM aggregate_events WHERE stream = ?`, stream,
	).Scan(&actual); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if uint64(actual) != expectedVersion {
		return nil, gerrors.NewErrConcurrencyConflict(stream, expectedVersion, uint64(actual))
	}

	occurred := time.Now().UTC().Truncate(time.Millisecond)
	committed := make([]aggregate.Event, len(events))
	for i, event := range events {
		content, err := encode(event.Content)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event.Type, err)
		}

		event.Sequence = expectedVersion + uint64(i) + 1
		event.Occurred = occurred
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO aggregate_events (stream, sequence, event_type, content, occurred) VALUES (?, ?, ?, ?, ?)`,
			stream, int64(event.Sequence), event.Type, content, occurred.UnixMilli(),
		); err != nil {
			if isConstraintViolation(err) {
				return nil, gerrors.NewErrConcurrencyConflict(stream, expectedVersion, event.Sequence)
			}
			return nil, fmt.Errorf("insert event: %w", err)
		}
		committed[i] = event
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return nil, gerrors.NewErrConcurrencyConflict(stream, expectedVersion, expectedVersion+1)
		}
		return nil, fmt.Errorf("commit events: %w", err)
	}
	return committed, nil
}

func encode(content any) ([]byte, error) {
	message, ok := content.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("content %T is not a protobuf message", content)
	}
	wrapped, err := anypb.New(message)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(wrapped)
}

func decode(data []byte) (proto.Message, error) {
	wrapped := new(anypb.Any)
	if err := proto.Unmarshal(data, wrapped); err != nil {
		return nil, err
	}
	return wrapped.UnmarshalNew()
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
