package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/examforge/examforge/internal/embed"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/store"
)

// Record is one question in the structured dump format produced by the PDF
// extraction pipeline. MCQs carry option1..option4; the answer is the
// correct option text, its letter, or its 1-based number.
type Record struct {
	QuestionText string     `json:"question_text"`
	Option1      string     `json:"option1"`
	Option2      string     `json:"option2"`
	Option3      string     `json:"option3"`
	Option4      string     `json:"option4"`
	Answer       flexString `json:"answer"`
	Explanation  string     `json:"explanation"`
	Exam         string     `json:"exam"`
	Stream       string     `json:"stream"`
	Year         flexString `json:"year"`
	Topic        string     `json:"topic"`
	Section      string     `json:"section"`
	Type         string     `json:"type"`
}

// Defaults fill fields missing from records, typically derived from the
// dump's file name (e.g. CAT_VARC_all_years_combined.json).
type Defaults struct {
	Exam    string
	Stream  string
	Section string
}

// Report summarizes an import.
type Report struct {
	Read     int
	Inserted int
	Skipped  int
	Problems []string
}

// sectionAliases maps labels used by older dumps to layout section names.
var sectionAliases = map[string]string{
	"quant":            "QA",
	"qa":               "QA",
	"lrdi":             "DILR",
	"ga":               "General Aptitude",
	"general_aptitude": "General Aptitude",
}

const embedBatch = 64

// Importer loads question dumps into the corpus index.
type Importer struct {
	table    *exam.Table
	repo     store.CorpusRepo
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewImporter creates an importer. Records are validated against table.
func NewImporter(table *exam.Table, repo store.CorpusRepo, embedder embed.Embedder, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{table: table, repo: repo, embedder: embedder, logger: logger}
}

// Import reads a JSON array or a stream of JSON objects from r. Invalid
// records are skipped and reported; only read, embed and write failures
// abort the import.
func (im *Importer) Import(ctx context.Context, r io.Reader, defaults Defaults) (Report, error) {
	records, err := decodeRecords(r)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Read: len(records)}
	var batch []store.CorpusItem
	var texts []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vecs, err := im.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		for i := range batch {
			batch[i].Embedder = im.embedder.Name()
			batch[i].Embedding = vecs[i]
		}
		n, err := im.repo.Insert(ctx, batch)
		if err != nil {
			return err
		}
		rep.Inserted += n
		rep.Skipped += len(batch) - n
		batch, texts = batch[:0], texts[:0]
		return nil
	}

	for i, rec := range records {
		item, err := im.toItem(rec, defaults)
		if err != nil {
			rep.Skipped++
			rep.Problems = append(rep.Problems, fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		batch = append(batch, item)
		texts = append(texts, EmbeddingText(item.Section, item.Topic, item.Year, item.Text))
		if len(batch) == embedBatch {
			if err := flush(); err != nil {
				return rep, err
			}
		}
	}
	if err := flush(); err != nil {
		return rep, err
	}

	im.logger.Info("corpus import finished",
		"read", rep.Read, "inserted", rep.Inserted, "skipped", rep.Skipped)
	return rep, nil
}

// EmbeddingText is the text embedded for a corpus item. It shares the
// section, topic and year vocabulary of Query.Text so queries land near
// matching items.
func EmbeddingText(section, topic string, year int, text string) string {
	parts := []string{section}
	if topic != "" {
		parts = append(parts, topic)
	}
	if year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(append(parts, text), " ")
}

func (im *Importer) toItem(rec Record, d Defaults) (store.CorpusItem, error) {
	text := strings.TrimSpace(rec.QuestionText)
	if text == "" {
		return store.CorpusItem{}, errors.New("question_text is empty")
	}

	name, err := exam.ParseName(firstNonEmpty(rec.Exam, d.Exam))
	if err != nil {
		return store.CorpusItem{}, err
	}

	rawSection := firstNonEmpty(rec.Section, d.Section)
	if alias, ok := sectionAliases[strings.ToLower(strings.TrimSpace(rawSection))]; ok {
		rawSection = alias
	}
	section, ok := im.table.Section(name, strings.ReplaceAll(rawSection, "_", " "))
	if !ok {
		return store.CorpusItem{}, fmt.Errorf("exam %s has no section %q", name, rawSection)
	}

	stream := ""
	if !section.Shared {
		if raw := firstNonEmpty(rec.Stream, d.Stream); raw != "" {
			st, ok := exam.LookupStream(raw)
			if !ok {
				return store.CorpusItem{}, fmt.Errorf("unknown stream %q", raw)
			}
			stream = st.Code
		} else if name == exam.GATE {
			return store.CorpusItem{}, fmt.Errorf("section %s needs a stream", section.Name)
		}
	}

	year := 0
	if y := strings.TrimSpace(string(rec.Year)); y != "" {
		year, err = strconv.Atoi(y)
		if err != nil || year < 0 {
			return store.CorpusItem{}, fmt.Errorf("invalid year %q", y)
		}
	}

	options := []string{rec.Option1, rec.Option2, rec.Option3, rec.Option4}
	hasOptions := false
	for i := range options {
		options[i] = strings.TrimSpace(options[i])
		if options[i] != "" {
			hasOptions = true
		}
	}

	var typ exam.AnswerType
	switch {
	case rec.Type != "":
		typ, err = exam.ParseAnswerType(rec.Type)
		if err != nil {
			return store.CorpusItem{}, err
		}
	case hasOptions:
		typ = exam.MCQ
	case name == exam.CAT:
		typ = exam.TITA
	default:
		typ = exam.NAT
	}
	if !section.Allows(typ) {
		return store.CorpusItem{}, fmt.Errorf("section %s does not take %s questions", section.Name, typ)
	}

	answer := strings.TrimSpace(string(rec.Answer))
	if answer == "" {
		return store.CorpusItem{}, errors.New("answer is empty")
	}
	if typ == exam.MCQ {
		answer, err = resolveOption(options, answer)
		if err != nil {
			return store.CorpusItem{}, err
		}
	} else {
		options = nil
	}

	return store.CorpusItem{
		Exam:        string(name),
		Stream:      stream,
		Section:     section.Name,
		Topic:       strings.TrimSpace(rec.Topic),
		Year:        year,
		AnswerType:  string(typ),
		Text:        text,
		Options:     options,
		Answer:      answer,
		Explanation: strings.TrimSpace(rec.Explanation),
	}, nil
}

// resolveOption returns the option text designated by answer, which may be
// the text itself in any case, a letter A-D, a number 1-4, or "optionN".
// Options must be distinct ignoring case.
func resolveOption(options []string, answer string) (string, error) {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if o == "" {
			return "", errors.New("MCQ needs 4 non-empty options")
		}
		key := strings.ToLower(o)
		if seen[key] {
			return "", fmt.Errorf("duplicate option %q", o)
		}
		seen[key] = true
	}
	for _, o := range options {
		if o == answer {
			return o, nil
		}
	}
	key := strings.Trim(strings.TrimPrefix(strings.ToLower(answer), "option"), " ().")
	switch key {
	case "a", "1":
		return options[0], nil
	case "b", "2":
		return options[1], nil
	case "c", "3":
		return options[2], nil
	case "d", "4":
		return options[3], nil
	}
	for _, o := range options {
		if strings.EqualFold(o, answer) {
			return o, nil
		}
	}
	return "", fmt.Errorf("answer %q matches no option", answer)
}

func decodeRecords(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus dump: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var recs []Record
		if err := dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode corpus dump: %w", err)
		}
		return recs, nil
	}

	var recs []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode corpus record %d: %w", len(recs)+1, err)
		}
		recs = append(recs, rec)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}
