package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const examsTable = "exams"

// examRepo implements ExamRepo over the exams table.
type examRepo struct {
	db *sql.DB
}

func (r *examRepo) Save(ctx context.Context, rec ExamRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(examsTable).
		Columns("id", "exam", "stream", "year", "digest", "document", "created_at").
		Values(rec.ID, rec.Exam, rec.Stream, rec.Year, rec.Digest, string(rec.Document), created.UnixMilli()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save exam %s: %w", rec.ID, err)
	}
	return nil
}

func (r *examRepo) Latest(ctx context.Context, exam, stream string, year int) (*ExamRecord, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("id", "exam", "stream", "year", "digest", "document", "created_at").
		From(entsql.Table(examsTable)).
		Where(entsql.And(
			entsql.EQ("exam", exam),
			entsql.EQ("stream", stream),
			entsql.EQ("year", year),
		)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("rowid")).
		Limit(1).
		Query()

	var rec ExamRecord
	var doc string
	var created int64
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.Exam, &rec.Stream, &rec.Year, &rec.Digest, &doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest exam: %w", err)
	}
	rec.Document = []byte(doc)
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return &rec, nil
}

func (r *examRepo) Prune(ctx context.Context, keep int) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("id", "exam", "stream", "year").
		From(entsql.Table(examsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("rowid")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query exams for prune: %w", err)
	}

	type key struct {
		exam, stream string
		year         int
	}
	seen := make(map[key]int)
	var stale []any
	for rows.Next() {
		var id string
		var k key
		if err := rows.Scan(&id, &k.exam, &k.stream, &k.year); err != nil {
			rows.Close()
			return fmt.Errorf("scan exam: %w", err)
		}
		seen[k]++
		if seen[k] > keep {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query exams for prune: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	del, delArgs := entsql.Dialect(dialect.SQLite).
		Delete(examsTable).
		Where(entsql.In("id", stale...)).
		Query()
	if _, err := r.db.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("prune exams: %w", err)
	}
	return nil
}
