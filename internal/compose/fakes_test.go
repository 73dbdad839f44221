package compose

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/llm"
)

// fakeGenerator produces distinct valid candidates unless respond says
// otherwise. It records prompts and the peak number of concurrent calls.
type fakeGenerator struct {
	mu          sync.Mutex
	n           int
	prompts     []generator.Prompt
	inFlight    int
	maxInFlight int

	// respond overrides the default candidate. It is called with the
	// 1-based call number.
	respond func(n int, p generator.Prompt) (exam.Candidate, error)

	// delay is applied to every call, ignoring ctx like a provider that
	// does not honor cancellation mid-request.
	delay time.Duration

	// started, when set, receives once per call after it is counted.
	started chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, p generator.Prompt) (exam.Candidate, error) {
	g.mu.Lock()
	g.n++
	n := g.n
	g.prompts = append(g.prompts, p)
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	respond := g.respond
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if respond != nil {
		return respond(n, p)
	}
	return uniqueCandidate(n, p.Type), nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *fakeGenerator) MaxInFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight
}

func (g *fakeGenerator) Prompts() []generator.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generator.Prompt(nil), g.prompts...)
}

// uniqueCandidate returns a valid candidate whose text shares less than
// half its tokens with any other call's text.
func uniqueCandidate(n int, t exam.AnswerType) exam.Candidate {
	text := fmt.Sprintf("Compute value%d for item%d using rule%d", n, n, n)
	switch t {
	case exam.MCQ:
		return exam.MCQCandidate{Text: text, Options: []string{"opt1", "opt2", "opt3", "opt4"}, Answer: "opt2"}
	case exam.TITA:
		return exam.TITACandidate{Text: text, Answer: strconv.Itoa(n)}
	default:
		return exam.NATCandidate{Text: text, Answer: fmt.Sprintf("%d.5", n)}
	}
}

func malformed(int, generator.Prompt) (exam.Candidate, error) {
	return nil, &generator.Failure{Kind: generator.MalformedResponse, Err: fmt.Errorf("not json")}
}

func rateLimited(int, generator.Prompt) (exam.Candidate, error) {
	return nil, &generator.Failure{Kind: generator.RateLimited, Err: &llm.ErrRateLimit{}}
}

// countingRetriever wraps a Retriever and counts calls.
type countingRetriever struct {
	corpus.Retriever

	mu        sync.Mutex
	retrieves int
	pools     int
	err       error
}

func (r *countingRetriever) Retrieve(ctx context.Context, q corpus.Query) ([]exam.HistoricalQuestion, error) {
	r.mu.Lock()
	r.retrieves++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Retriever.Retrieve(ctx, q)
}

func (r *countingRetriever) Pool(ctx context.Context, scope exam.Scope, t exam.AnswerType, n int) ([]exam.HistoricalQuestion, error) {
	r.mu.Lock()
	r.pools++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Retriever.Pool(ctx, scope, t, n)
}

func (r *countingRetriever) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retrieves + r.pools
}

var seedCounter atomic.Int64

// seedCorpus fills idx with exactly enough distinct questions of each type
// for every section of spec.
func seedCorpus(idx *corpus.MemoryIndex, table *exam.Table, spec exam.Spec) {
	norm, sections, err := table.Resolve(spec)
	if err != nil {
		panic(err)
	}
	for _, sec := range sections {
		scope := exam.ScopeFor(norm, sec)
		for _, typ := range sec.AllowedTypes() {
			for range sec.Mix[typ] {
				k := seedCounter.Add(1)
				hq := exam.HistoricalQuestion{
					Type:  typ,
					Text:  fmt.Sprintf("Historical hist%d record%d about theme%d", k, k, k),
					Topic: sec.Name,
					Year:  2020,
				}
				switch typ {
				case exam.MCQ:
					hq.Options = []string{"alpha", "beta", "gamma", "delta"}
					hq.Answer = "beta"
				default:
					hq.Answer = strconv.FormatInt(k, 10)
				}
				idx.Add(scope, hq)
			}
		}
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Backoff = llm.BackoffConfig{InitialWait: time.Microsecond, MaxWait: time.Millisecond, Multiplier: 2}
	cfg.CallTimeout = 5 * time.Second
	return cfg
}

// recordingObserver keeps every event.
type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished []error
	events   []SlotEvent
}

func (o *recordingObserver) RunStarted(string, exam.Spec, []exam.SectionSpec) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) SlotChanged(ev SlotEvent) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) RunFinished(_ string, err error) {
	o.mu.Lock()
	o.finished = append(o.finished, err)
	o.mu.Unlock()
}

func (o *recordingObserver) count(state SlotState) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, ev := range o.events {
		if ev.State == state {
			n++
		}
	}
	return n
}
