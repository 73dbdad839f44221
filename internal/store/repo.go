package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	RunID  string    // exact match when set
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	RunID        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// EventRepo provides append access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// EventLog adds read access to the event log.
type EventLog interface {
	EventRepo

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns one event by ID, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEventRecord, error)
}

// CorpusScope selects the slice of the corpus a query may see. Stream is
// empty for sections shared across streams.
type CorpusScope struct {
	Exam    string
	Stream  string
	Section string
}

// CorpusItem is one historical question with its embedding.
type CorpusItem struct {
	ID          int64
	Exam        string
	Stream      string
	Section     string
	Topic       string
	Year        int
	AnswerType  string
	Text        string
	Options     []string
	Answer      string
	Explanation string
	Embedder    string
	Embedding   []float32
}

// ScoredItem is a corpus item with its similarity to a query.
type ScoredItem struct {
	CorpusItem
	Score float64
}

// CorpusStat counts corpus items per scope and answer type.
type CorpusStat struct {
	CorpusScope
	AnswerType string
	Count      int
}

// CorpusRepo is the historical question index.
type CorpusRepo interface {
	// Insert adds items, skipping ones already present (same scope, type and
	// text). It returns the number of rows inserted.
	Insert(ctx context.Context, items []CorpusItem) (int, error)

	// Search returns up to k items in scope ranked by cosine similarity to
	// embedding. An empty answerType matches every type. Only items built
	// with the given embedder are considered.
	Search(ctx context.Context, scope CorpusScope, embedder string, embedding []float32, k int, answerType string) ([]ScoredItem, error)

	// Pool returns up to n items in scope of the given type, in ID order.
	Pool(ctx context.Context, scope CorpusScope, answerType string, n int) ([]CorpusItem, error)

	// Stats counts items grouped by scope and type.
	Stats(ctx context.Context) ([]CorpusStat, error)
}

// ExamRecord is a cached generated exam document.
type ExamRecord struct {
	ID        string
	Exam      string
	Stream    string
	Year      int
	Digest    string
	Document  []byte
	CreatedAt time.Time
}

// ExamRepo caches generated exams keyed by (exam, stream, year).
type ExamRepo interface {
	// Save stores a document.
	Save(ctx context.Context, rec ExamRecord) error

	// Latest returns the newest document for the key, or nil if none exist.
	Latest(ctx context.Context, exam, stream string, year int) (*ExamRecord, error)

	// Prune deletes all but the keep most recent documents per key.
	Prune(ctx context.Context, keep int) error
}
