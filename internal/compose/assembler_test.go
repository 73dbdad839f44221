package compose

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/similarity"
)

// checkDocument asserts the structural and duplication properties every
// composed document must have.
func checkDocument(t *testing.T, table *exam.Table, spec exam.Spec, doc exam.Document) {
	t.Helper()
	_, sections, err := table.Resolve(spec)
	require.NoError(t, err)

	require.Len(t, doc.Sections, len(sections))
	assert.Equal(t, exam.Total(sections), doc.Total())

	var all []exam.Question
	for i, sec := range sections {
		got := doc.Sections[i]
		assert.Equal(t, sec.Name, got.Name)
		require.Len(t, got.Questions, sec.Count, "section %s", sec.Name)
		counts := got.CountTypes()
		for typ, want := range sec.Mix {
			assert.Equal(t, want, counts[typ], "section %s type %s", sec.Name, typ)
		}
		for typ := range counts {
			assert.True(t, sec.Allows(typ), "section %s has disallowed type %s", sec.Name, typ)
		}
		all = append(all, got.Questions...)
	}

	for i, q := range all {
		require.NotEmpty(t, q.Text)
		if q.Type == exam.MCQ {
			require.Len(t, q.Options, 4)
			seen := map[string]bool{}
			matches := 0
			for _, o := range q.Options {
				assert.NotEmpty(t, o)
				assert.False(t, seen[strings.ToLower(o)], "duplicate option %q", o)
				seen[strings.ToLower(o)] = true
				if o == q.Answer {
					matches++
				}
			}
			assert.Equal(t, 1, matches, "MCQ %q needs exactly one correct option", q.Text)
		} else {
			assert.Empty(t, q.Options)
		}
		for _, other := range all[i+1:] {
			assert.Less(t, similarity.Text(q.Text, other.Text), similarity.DefaultThreshold,
				"near-duplicates in one document: %q / %q", q.Text, other.Text)
		}
	}
	assert.Equal(t, doc.Total(), doc.Stats.Generated+doc.Stats.Fallback)
}

func singleSectionTable(t *testing.T, count int, topics ...string) *exam.Table {
	t.Helper()
	yaml := fmt.Sprintf(`version: 1
exams:
  CAT:
    sections:
      - name: VARC
        count: %d
        mix: { MCQ: %d }
        topics: [%s]
`, count, count, strings.Join(topics, ", "))
	table, err := exam.ParseTable([]byte(yaml))
	require.NoError(t, err)
	return table
}

func TestCompose_CAT2024(t *testing.T) {
	table := exam.DefaultTable()
	gen := &fakeGenerator{}
	a := New(table, corpus.NewMemoryIndex(), gen, fastConfig(), nil)

	spec := exam.Spec{Exam: exam.CAT, Year: 2024}
	doc, err := a.Compose(context.Background(), spec)
	require.NoError(t, err)
	checkDocument(t, table, spec, doc)

	assert.Equal(t, 68, doc.Total())
	for i, name := range []string{"VARC", "DILR", "QA"} {
		assert.Equal(t, name, doc.Sections[i].Name)
	}
	assert.Equal(t, []int{24, 22, 22}, []int{
		len(doc.Sections[0].Questions), len(doc.Sections[1].Questions), len(doc.Sections[2].Questions),
	})
	for _, sec := range doc.Sections {
		for _, q := range sec.Questions {
			assert.Contains(t, []exam.AnswerType{exam.MCQ, exam.TITA}, q.Type)
			assert.Equal(t, exam.SourceGenerated, q.Source)
			assert.Equal(t, 1, q.Attempts)
		}
	}
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 2024, doc.Year)
	assert.Equal(t, 68, doc.Stats.Generated)
	assert.Equal(t, 68, doc.Stats.Attempts)
	assert.Equal(t, 68, gen.Calls())
}

func TestCompose_GATECS2024(t *testing.T) {
	table := exam.DefaultTable()
	idx := corpus.NewMemoryIndex()
	spec := exam.Spec{Exam: exam.GATE, Stream: "cs", Year: 2024}
	seedCorpus(idx, table, spec)
	gen := &fakeGenerator{}

	doc, err := New(table, idx, gen, fastConfig(), nil).Compose(context.Background(), spec)
	require.NoError(t, err)
	checkDocument(t, table, spec, doc)

	assert.Equal(t, "CS", doc.Stream, "stream is normalized")
	assert.Equal(t, 65, doc.Total())
	ga, ok := doc.Section("General Aptitude")
	require.True(t, ok)
	assert.Len(t, ga.Questions, 10)
	tech, ok := doc.Section("Technical")
	require.True(t, ok)
	assert.Len(t, tech.Questions, 55)
	for _, sec := range doc.Sections {
		for _, q := range sec.Questions {
			assert.Contains(t, []exam.AnswerType{exam.MCQ, exam.NAT}, q.Type)
		}
	}

	// Every prompt was grounded in its own scope and type.
	for _, p := range gen.Prompts() {
		require.NotEmpty(t, p.Context)
		for _, hq := range p.Context {
			assert.Equal(t, p.Type, hq.Type)
		}
		if p.Section == "General Aptitude" {
			assert.Empty(t, p.Stream, "aptitude is shared across streams")
		} else {
			assert.Equal(t, "CS", p.Stream)
		}
	}
}

func TestCompose_EveryGATEStream(t *testing.T) {
	table := exam.DefaultTable()
	for _, st := range exam.GATEStreams() {
		t.Run(st.Code, func(t *testing.T) {
			spec := exam.Spec{Exam: exam.GATE, Stream: st.Code}
			doc, err := New(table, corpus.NewMemoryIndex(), &fakeGenerator{}, fastConfig(), nil).
				Compose(context.Background(), spec)
			require.NoError(t, err)
			checkDocument(t, table, spec, doc)
		})
	}
}

func TestCompose_GeneratedNeverDuplicatesContext(t *testing.T) {
	table := exam.DefaultTable()
	idx := corpus.NewMemoryIndex()
	spec := exam.Spec{Exam: exam.CAT, Year: 2023}
	seedCorpus(idx, table, spec)

	// Every other call copies its top reference question.
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if n%2 == 0 && len(p.Context) > 0 {
			hq := p.Context[0]
			if hq.Type == exam.MCQ {
				return exam.MCQCandidate{Text: hq.Text, Options: hq.Options, Answer: hq.Answer}, nil
			}
			return exam.TITACandidate{Text: hq.Text, Answer: hq.Answer}, nil
		}
		return uniqueCandidate(n, p.Type), nil
	}}

	doc, err := New(table, idx, gen, fastConfig(), nil).Compose(context.Background(), spec)
	require.NoError(t, err)
	checkDocument(t, table, spec, doc)

	norm, sections, _ := table.Resolve(spec)
	for i, sec := range sections {
		scopeItems, _ := idx.Pool(context.Background(), exam.ScopeFor(norm, sec), exam.MCQ, 1000)
		tita, _ := idx.Pool(context.Background(), exam.ScopeFor(norm, sec), exam.TITA, 1000)
		scopeItems = append(scopeItems, tita...)
		for _, q := range doc.Sections[i].Questions {
			if q.Source != exam.SourceGenerated {
				continue
			}
			for _, hq := range scopeItems {
				assert.Less(t, similarity.Text(q.Text, hq.Text), similarity.DefaultThreshold)
			}
		}
	}
	assert.Positive(t, doc.Stats.Fallback, "copied candidates fall back to the corpus")
}

func TestCompose_InvalidSpecMakesNoCalls(t *testing.T) {
	tests := []struct {
		name string
		spec exam.Spec
	}{
		{"unsupported stream", exam.Spec{Exam: exam.GATE, Stream: "ZZ"}},
		{"missing stream", exam.Spec{Exam: exam.GATE}},
		{"CAT with stream", exam.Spec{Exam: exam.CAT, Stream: "CS"}},
		{"unknown exam", exam.Spec{Exam: "NEET"}},
		{"negative year", exam.Spec{Exam: exam.CAT, Year: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			ret := &countingRetriever{Retriever: corpus.NewMemoryIndex()}
			obs := &recordingObserver{}
			a := New(exam.DefaultTable(), ret, gen, fastConfig(), nil).WithObserver(obs)

			_, err := a.Compose(context.Background(), tt.spec)
			require.ErrorIs(t, err, ErrInvalidSpec)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, InvalidSpec, cerr.Kind)
			assert.Zero(t, gen.Calls())
			assert.Zero(t, ret.Calls())
			assert.Zero(t, obs.started)
		})
	}
}

func TestCompose_UnfillableNamesSectionAndSlot(t *testing.T) {
	table := singleSectionTable(t, 4, "alpha", "bravo", "charlie", "delta")
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if p.Topic == "charlie" {
			return malformed(n, p)
		}
		return uniqueCandidate(n, p.Type), nil
	}}

	_, err := New(table, corpus.NewMemoryIndex(), gen, fastConfig(), nil).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.ErrorIs(t, err, ErrSlotUnfillable)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, exam.CAT, cerr.Exam)
	assert.Equal(t, "VARC", cerr.Section)
	assert.Equal(t, 2, cerr.Slot)
	assert.Contains(t, err.Error(), "section VARC slot 2")

	charlie := 0
	for _, p := range gen.Prompts() {
		if p.Topic == "charlie" {
			charlie++
		}
	}
	assert.Equal(t, 3, charlie, "the failing slot uses its whole budget")
}

func TestCompose_AlwaysMalformedEmptyCorpus(t *testing.T) {
	cfg := fastConfig()
	cfg.SlotWorkers = 1
	gen := &fakeGenerator{respond: malformed}

	_, err := New(exam.DefaultTable(), corpus.NewMemoryIndex(), gen, cfg, nil).
		Compose(context.Background(), exam.Spec{Exam: exam.GATE, Stream: "ME", Year: 2024})
	require.ErrorIs(t, err, ErrSlotUnfillable)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "General Aptitude", cerr.Section)
	assert.Zero(t, cerr.Slot)
	assert.Equal(t, "ME", cerr.Stream)
	assert.Equal(t, cfg.MaxAttempts, gen.Calls(), "no slot starts after the run fails")
}

func TestCompose_TransientGeneratorFallsBackToCorpus(t *testing.T) {
	table := exam.DefaultTable()
	for _, spec := range []exam.Spec{{Exam: exam.CAT, Year: 2024}, {Exam: exam.GATE, Stream: "EE", Year: 2024}} {
		t.Run(spec.String(), func(t *testing.T) {
			idx := corpus.NewMemoryIndex()
			seedCorpus(idx, table, spec)
			gen := &fakeGenerator{respond: rateLimited}
			cfg := fastConfig()

			doc, err := New(table, idx, gen, cfg, nil).Compose(context.Background(), spec)
			require.NoError(t, err)
			checkDocument(t, table, spec, doc)

			assert.Zero(t, doc.Stats.Generated)
			assert.Equal(t, doc.Total(), doc.Stats.Fallback)
			assert.Equal(t, doc.Total()*cfg.MaxAttempts, gen.Calls())
			ids := map[string]bool{}
			for _, sec := range doc.Sections {
				for _, q := range sec.Questions {
					assert.Equal(t, exam.SourceCorpus, q.Source)
					require.NotEmpty(t, q.CorpusID)
					assert.False(t, ids[q.CorpusID], "corpus question %s used twice", q.CorpusID)
					ids[q.CorpusID] = true
				}
			}
		})
	}
}

func TestCompose_CapabilityUnavailableFailsRun(t *testing.T) {
	gen := &fakeGenerator{respond: func(int, generator.Prompt) (exam.Candidate, error) {
		return nil, &generator.Failure{Kind: generator.CapabilityUnavailable, Err: errors.New("missing API key")}
	}}
	idx := corpus.NewMemoryIndex()
	seedCorpus(idx, exam.DefaultTable(), exam.Spec{Exam: exam.CAT})
	cfg := fastConfig()

	_, err := New(exam.DefaultTable(), idx, gen, cfg, nil).Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Contains(t, err.Error(), "missing API key")
	assert.LessOrEqual(t, gen.Calls(), cfg.SlotWorkers, "no retries and no corpus fallback")
}

func TestCompose_ConcurrencyCap(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrentGenerations = 2
	cfg.SlotWorkers = 16
	gen := &fakeGenerator{delay: 2 * time.Millisecond}

	doc, err := New(exam.DefaultTable(), corpus.NewMemoryIndex(), gen, cfg, nil).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.NoError(t, err)
	assert.Equal(t, 68, doc.Total())
	assert.LessOrEqual(t, gen.MaxInFlight(), 2)
	assert.Positive(t, gen.MaxInFlight())
}

func TestCompose_CancelStopsNewCallsAndDrains(t *testing.T) {
	cfg := fastConfig()
	gen := &fakeGenerator{delay: 50 * time.Millisecond, started: make(chan struct{}, 1000)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-gen.started
		cancel()
	}()

	_, err := New(exam.DefaultTable(), corpus.NewMemoryIndex(), gen, cfg, nil).
		Compose(ctx, exam.Spec{Exam: exam.CAT})
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)

	calls := gen.Calls()
	assert.LessOrEqual(t, calls, int(cfg.MaxConcurrentGenerations), "only calls already admitted may run")

	gen.mu.Lock()
	inFlight := gen.inFlight
	gen.mu.Unlock()
	assert.Zero(t, inFlight, "Compose returns after in-flight calls drain")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, gen.Calls(), "no calls after Compose returned")
}

func TestCompose_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{}

	_, err := New(exam.DefaultTable(), corpus.NewMemoryIndex(), gen, fastConfig(), nil).
		Compose(ctx, exam.Spec{Exam: exam.CAT})
	require.ErrorIs(t, err, ErrCanceled)
	assert.Zero(t, gen.Calls())
}

func TestCompose_RetryCarriesCorrection(t *testing.T) {
	table := singleSectionTable(t, 1, "reading comprehension")
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if n == 1 {
			return exam.MCQCandidate{Text: "Pick the main idea of the passage", Options: []string{"a", "b", "c"}, Answer: "a"}, nil
		}
		return uniqueCandidate(n, p.Type), nil
	}}
	obs := &recordingObserver{}

	doc, err := New(table, corpus.NewMemoryIndex(), gen, fastConfig(), nil).WithObserver(obs).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.NoError(t, err)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Empty(t, prompts[0].Correction)
	assert.Contains(t, prompts[1].Correction, "exactly 4 options")
	assert.Equal(t, 2, doc.Sections[0].Questions[0].Attempts)
	assert.Equal(t, 1, obs.count(StateRetrying))
	assert.Equal(t, 1, obs.count(StateAccepted))
}

func TestCompose_MalformedRetryCarriesCorrection(t *testing.T) {
	table := singleSectionTable(t, 1, "para jumbles")
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if n == 1 {
			return malformed(n, p)
		}
		return uniqueCandidate(n, p.Type), nil
	}}

	_, err := New(table, corpus.NewMemoryIndex(), gen, fastConfig(), nil).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.NoError(t, err)
	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1].Correction, "not a valid MCQ question")
}

func TestCompose_RacingDuplicatesRetry(t *testing.T) {
	table := singleSectionTable(t, 2, "arithmetic")
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if n <= 2 {
			return exam.MCQCandidate{
				Text:    "A train covers 120 km in 2 hours; find its average speed",
				Options: []string{"50", "60", "70", "80"}, Answer: "60",
			}, nil
		}
		return uniqueCandidate(n, p.Type), nil
	}}

	doc, err := New(table, corpus.NewMemoryIndex(), gen, fastConfig(), nil).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.NoError(t, err)
	checkDocument(t, table, exam.Spec{Exam: exam.CAT}, doc)
	assert.Equal(t, 3, gen.Calls(), "the losing slot regenerates once")

	// The loser is told what to avoid.
	last := gen.Prompts()[2]
	assert.Contains(t, strings.Join(last.Avoid, "\n"), "average speed")
}

func TestCompose_RetrieverErrorProceedsUngrounded(t *testing.T) {
	ret := &countingRetriever{Retriever: corpus.NewMemoryIndex(), err: errors.New("disk I/O error")}
	gen := &fakeGenerator{}

	doc, err := New(exam.DefaultTable(), ret, gen, fastConfig(), nil).
		Compose(context.Background(), exam.Spec{Exam: exam.CAT})
	require.NoError(t, err)
	assert.Equal(t, 68, doc.Total())
	for _, p := range gen.Prompts() {
		assert.Empty(t, p.Context)
	}
}

func TestCompose_ObserverSeesEverySlot(t *testing.T) {
	obs := &recordingObserver{}
	_, err := New(exam.DefaultTable(), corpus.NewMemoryIndex(), &fakeGenerator{}, fastConfig(), nil).
		WithObserver(obs).Compose(context.Background(), exam.Spec{Exam: exam.GATE, Stream: "CE"})
	require.NoError(t, err)

	assert.Equal(t, 1, obs.started)
	require.Len(t, obs.finished, 1)
	assert.NoError(t, obs.finished[0])
	assert.Equal(t, 65, obs.count(StatePending))
	assert.Equal(t, 65, obs.count(StateAccepted))

	runIDs := map[string]bool{}
	for _, ev := range obs.events {
		runIDs[ev.RunID] = true
	}
	assert.Len(t, runIDs, 1)
}

func TestCompose_RerunsStayWellFormed(t *testing.T) {
	table := exam.DefaultTable()
	spec := exam.Spec{Exam: exam.GATE, Stream: "EC", Year: 2022}
	idx := corpus.NewMemoryIndex()
	seedCorpus(idx, table, spec)

	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(1, 2))
	roll := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}

	digests := map[string]bool{}
	for range 3 {
		gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
			switch r := roll(); {
			case r < 0.25:
				return malformed(n, p)
			case r < 0.35:
				return rateLimited(n, p)
			default:
				return uniqueCandidate(n+int(r*1e6), p.Type), nil
			}
		}}
		doc, err := New(table, idx, gen, fastConfig(), nil).Compose(context.Background(), spec)
		require.NoError(t, err)
		checkDocument(t, table, spec, doc)
		d, err := doc.Digest()
		require.NoError(t, err)
		digests[d] = true
	}
	assert.Greater(t, len(digests), 1, "reruns are not expected to be identical")
}

func TestCompose_DuplicateWithNothingClaimableRetries(t *testing.T) {
	table := singleSectionTable(t, 2, "reading")
	spec := exam.Spec{Exam: exam.CAT}
	norm, sections, err := table.Resolve(spec)
	require.NoError(t, err)

	idx := corpus.NewMemoryIndex()
	source := exam.HistoricalQuestion{
		Type:    exam.MCQ,
		Text:    "The author of the passage most likely believes that urban planning fails",
		Options: []string{"always", "rarely", "sometimes", "never"},
		Answer:  "sometimes",
	}
	idx.Add(exam.ScopeFor(norm, sections[0]), source)

	// The first two calls copy the only corpus question.
	gen := &fakeGenerator{respond: func(n int, p generator.Prompt) (exam.Candidate, error) {
		if n <= 2 {
			return exam.MCQCandidate{Text: source.Text, Options: source.Options, Answer: source.Answer}, nil
		}
		return uniqueCandidate(n, p.Type), nil
	}}
	cfg := fastConfig()
	cfg.SlotWorkers = 1

	doc, err := New(table, idx, gen, cfg, nil).Compose(context.Background(), spec)
	require.NoError(t, err, "a duplicate with an exhausted corpus still has retry budget")
	checkDocument(t, table, spec, doc)

	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, 1, doc.Stats.Fallback)
	assert.Equal(t, 1, doc.Stats.Generated)

	qs := doc.Sections[0].Questions
	assert.Equal(t, exam.SourceCorpus, qs[0].Source)
	assert.Equal(t, 1, qs[0].Attempts)
	assert.Equal(t, exam.SourceGenerated, qs[1].Source)
	assert.Equal(t, 2, qs[1].Attempts)

	retry := gen.Prompts()[2]
	assert.NotEmpty(t, retry.Correction)
	assert.Contains(t, retry.Avoid, source.Text)
}

func TestCompose_DuplicateUntilBudgetIsUnfillable(t *testing.T) {
	table := singleSectionTable(t, 2, "reading")
	spec := exam.Spec{Exam: exam.CAT}
	norm, sections, err := table.Resolve(spec)
	require.NoError(t, err)

	idx := corpus.NewMemoryIndex()
	source := exam.HistoricalQuestion{
		Type:    exam.MCQ,
		Text:    "Which option best captures the tone of the passage on river ecology",
		Options: []string{"wry", "somber", "neutral", "elated"},
		Answer:  "neutral",
	}
	idx.Add(exam.ScopeFor(norm, sections[0]), source)

	gen := &fakeGenerator{respond: func(int, generator.Prompt) (exam.Candidate, error) {
		return exam.MCQCandidate{Text: source.Text, Options: source.Options, Answer: source.Answer}, nil
	}}
	cfg := fastConfig()
	cfg.SlotWorkers = 1

	_, err = New(table, idx, gen, cfg, nil).Compose(context.Background(), spec)
	require.ErrorIs(t, err, ErrSlotUnfillable)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, cerr.Slot)
	assert.Equal(t, 1+cfg.MaxAttempts, gen.Calls(), "the second slot spends its whole budget")
}

// stallingGenerator blocks every call until its context ends.
type stallingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *stallingGenerator) Generate(ctx context.Context, _ generator.Prompt) (exam.Candidate, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (g *stallingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestCompose_CallTimeoutSpendsBudget(t *testing.T) {
	table := singleSectionTable(t, 1, "reading")
	spec := exam.Spec{Exam: exam.CAT}
	idx := corpus.NewMemoryIndex()
	seedCorpus(idx, table, spec)

	gen := &stallingGenerator{}
	cfg := fastConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	obs := &recordingObserver{}

	doc, err := New(table, idx, gen, cfg, nil).WithObserver(obs).Compose(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, cfg.MaxAttempts, gen.Calls())
	q := doc.Sections[0].Questions[0]
	assert.Equal(t, exam.SourceCorpus, q.Source)
	assert.Equal(t, cfg.MaxAttempts, q.Attempts)

	assert.Equal(t, cfg.MaxAttempts-1, obs.count(StateRetrying))
	obs.mu.Lock()
	defer obs.mu.Unlock()
	for _, ev := range obs.events {
		if ev.State == StateRetrying {
			assert.Contains(t, ev.Reason, string(generator.Timeout))
		}
	}
}

func TestAvoidList(t *testing.T) {
	accepted := []string{"a1", "a2", "a3"}
	rejected := []string{"r1", "r2"}

	assert.Equal(t, []string{"a1", "a2", "a3", "r1", "r2"}, avoidList(accepted, rejected, 0))
	assert.Equal(t, []string{"a3", "r1", "r2"}, avoidList(accepted, rejected, 3))
	assert.Equal(t, []string{"a1", "a2", "a3"}, accepted, "input is not modified")
}
