// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"events-scrape/internal/model"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT    NOT NULL,
	scope       TEXT    NOT NULL DEFAULT '',
	id          TEXT    NOT NULL,
	fingerprint TEXT    NOT NULL,
	body        TEXT    NOT NULL,
	written_at  INTEGER NOT NULL,
	PRIMARY KEY (collection, scope, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_written
	ON documents (collection, written_at);
`

// SQLiteBackend 는 modernc sqlite 기반 document store.
//
// 쓰기 경합을 피하기 위해 connection 을 1개로 제한한다.
// database/sql 이 호출을 직렬화하므로 worker 들이 동시에 불러도 안전하다.
// (":memory:" DB 도 connection 이 하나여야 같은 DB 를 본다)
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite 는 DB 를 열고 schema 를 적용한다.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// Ping 은 시작 시 store 에 닿을 수 있는지 확인한다.
// 실패는 프로세스 레벨 치명 오류이며 판단은 orchestration 쪽에서 한다.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteBackend) Count(ctx context.Context, collection string, scope Scope) (int, error) {
	q := `SELECT COUNT(*) FROM documents WHERE collection = ?`
	args := []any{collection}
	if !scope.IsZero() {
		q += ` AND scope = ?`
		args = append(args, scope.Key())
	}

	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", collection, err)
	}
	return n, nil
}

// Current 는 (collection, scope) 범위의 문서만 읽는다.
// scope 없음은 scope = '' 인 문서만 대상이다.
func (s *SQLiteBackend) Current(ctx context.Context, collection string, scope Scope) (map[string]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, body, written_at
		FROM documents
		WHERE collection = ? AND scope = ?
	`, collection, scope.Key())
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]model.Document)
	for rows.Next() {
		doc, err := scanDocument(rows, collection, scope.Key())
		if err != nil {
			return nil, err
		}
		out[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *SQLiteBackend) Upsert(ctx context.Context, doc model.Document) error {
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", doc.Collection, doc.ID, err)
	}
	writtenAt := doc.WrittenAt
	if writtenAt.IsZero() {
		writtenAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, scope, id, fingerprint, body, written_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, scope, id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			body        = excluded.body,
			written_at  = excluded.written_at
	`, doc.Collection, doc.Scope, doc.ID, doc.Fingerprint, string(body), writtenAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

// Scan 은 collection 을 written_at 순으로 순회한다.
// fn 이 에러를 반환하면 즉시 중단한다.
func (s *SQLiteBackend) Scan(ctx context.Context, collection string, fn func(model.Document) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, body, written_at, scope
		FROM documents
		WHERE collection = ?
		ORDER BY written_at, id
	`, collection)
	if err != nil {
		return fmt.Errorf("store: scan %s: %w", collection, err)
	}

	// connection 이 1개이므로 fn 안에서 다른 쿼리가 막히지 않도록 먼저 다 읽는다.
	var docs []model.Document
	for rows.Next() {
		var (
			doc   model.Document
			body  string
			ts    int64
			scope string
		)
		if err := rows.Scan(&doc.ID, &doc.Fingerprint, &body, &ts, &scope); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan %s: %w", collection, err)
		}
		if err := json.Unmarshal([]byte(body), &doc.Body); err != nil {
			rows.Close()
			return fmt.Errorf("store: decode %s/%s: %w", collection, doc.ID, err)
		}
		doc.Collection = collection
		doc.Scope = scope
		doc.WrittenAt = time.UnixMilli(ts)
		docs = append(docs, doc)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("store: scan %s: %w", collection, err)
	}

	for _, doc := range docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func scanDocument(rows *sql.Rows, collection, scope string) (model.Document, error) {
	var (
		doc  model.Document
		body string
		ts   int64
	)
	if err := rows.Scan(&doc.ID, &doc.Fingerprint, &body, &ts); err != nil {
		return doc, fmt.Errorf("store: scan row %s: %w", collection, err)
	}
	if err := json.Unmarshal([]byte(body), &doc.Body); err != nil {
		return doc, fmt.Errorf("store: decode %s/%s: %w", collection, doc.ID, err)
	}
	doc.Collection = collection
	doc.Scope = scope
	doc.WrittenAt = time.UnixMilli(ts)
	return doc, nil
}
