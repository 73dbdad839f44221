package store

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/examforge/examforge/internal/embed"
)

const corpusTable = "corpus_questions"

var corpusColumns = []string{
	"id", "exam", "stream", "section", "topic", "year", "answer_type",
	"text", "options", "answer", "explanation", "embedder", "embedding",
}

// corpusRepo implements CorpusRepo with brute-force cosine ranking over the
// rows of one scope. Scopes hold at most a few thousand questions.
type corpusRepo struct {
	db *sql.DB
}

func (r *corpusRepo) Insert(ctx context.Context, items []CorpusItem) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin corpus insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	inserted := 0
	for _, it := range items {
		opts, err := json.Marshal(nonNil(it.Options))
		if err != nil {
			return 0, fmt.Errorf("marshal options: %w", err)
		}
		query, args := entsql.Dialect(dialect.SQLite).
			Insert(corpusTable).
			Columns("fingerprint", "exam", "stream", "section", "topic", "year", "answer_type",
				"text", "options", "answer", "explanation", "embedder", "embedding", "created_at").
			Values(fingerprint(it), it.Exam, it.Stream, it.Section, it.Topic, it.Year, it.AnswerType,
				it.Text, string(opts), it.Answer, it.Explanation, it.Embedder, encodeVector(it.Embedding), now).
			OnConflict(entsql.ConflictColumns("fingerprint"), entsql.DoNothing()).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert corpus question: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit corpus insert: %w", err)
	}
	return inserted, nil
}

func (r *corpusRepo) Search(ctx context.Context, scope CorpusScope, embedder string, embedding []float32, k int, answerType string) ([]ScoredItem, error) {
	if k <= 0 {
		return nil, nil
	}

	sel := scopeSelector(scope, answerType).Where(entsql.EQ("embedder", embedder))
	items, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("search corpus %s/%s/%s: %w", scope.Exam, scope.Stream, scope.Section, err)
	}

	scored := make([]ScoredItem, len(items))
	for i, it := range items {
		scored[i] = ScoredItem{CorpusItem: it, Score: embed.Cosine(embedding, it.Embedding)}
	}
	slices.SortStableFunc(scored, func(a, b ScoredItem) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *corpusRepo) Pool(ctx context.Context, scope CorpusScope, answerType string, n int) ([]CorpusItem, error) {
	if n <= 0 {
		return nil, nil
	}
	sel := scopeSelector(scope, answerType).OrderBy("id").Limit(n)
	items, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("corpus pool %s/%s/%s: %w", scope.Exam, scope.Stream, scope.Section, err)
	}
	return items, nil
}

func (r *corpusRepo) Stats(ctx context.Context) ([]CorpusStat, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("exam", "stream", "section", "answer_type", entsql.Count("*")).
		From(entsql.Table(corpusTable)).
		GroupBy("exam", "stream", "section", "answer_type").
		OrderBy("exam", "stream", "section", "answer_type").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus stats: %w", err)
	}
	defer rows.Close()

	var stats []CorpusStat
	for rows.Next() {
		var s CorpusStat
		if err := rows.Scan(&s.Exam, &s.Stream, &s.Section, &s.AnswerType, &s.Count); err != nil {
			return nil, fmt.Errorf("scan corpus stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scopeSelector(scope CorpusScope, answerType string) *entsql.Selector {
	sel := entsql.Dialect(dialect.SQLite).
		Select(corpusColumns...).
		From(entsql.Table(corpusTable)).
		Where(entsql.And(
			entsql.EQ("exam", scope.Exam),
			entsql.EQ("stream", scope.Stream),
			entsql.EQ("section", scope.Section),
		))
	if answerType != "" {
		sel.Where(entsql.EQ("answer_type", answerType))
	}
	return sel
}

func (r *corpusRepo) query(ctx context.Context, sel *entsql.Selector) ([]CorpusItem, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CorpusItem
	for rows.Next() {
		var it CorpusItem
		var opts string
		var vec []byte
		if err := rows.Scan(&it.ID, &it.Exam, &it.Stream, &it.Section, &it.Topic, &it.Year, &it.AnswerType,
			&it.Text, &opts, &it.Answer, &it.Explanation, &it.Embedder, &vec); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &it.Options); err != nil {
			return nil, fmt.Errorf("decode options of corpus question %d: %w", it.ID, err)
		}
		if len(it.Options) == 0 {
			it.Options = nil
		}
		it.Embedding = decodeVector(vec)
		items = append(items, it)
	}
	return items, rows.Err()
}

// fingerprint identifies a question within its scope independent of
// whitespace and letter case.
func fingerprint(it CorpusItem) string {
	text := strings.Join(strings.Fields(strings.ToLower(it.Text)), " ")
	sum := sha256.Sum256([]byte(strings.Join([]string{it.Exam, it.Stream, it.Section, it.AnswerType, text}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
