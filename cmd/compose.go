package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/archive"
	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/ui/composeview"
	"github.com/examforge/examforge/internal/ui/theme"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a complete mock exam",
	Example: "  examforge compose --exam CAT --year 2024 --out cat-2024.json\n" +
		"  examforge compose --exam GATE --stream CS --year 2024 --tui",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viperForCmd(cmd)
		logger := slog.Default()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		table, err := loadTable(v)
		if err != nil {
			return err
		}
		spec := exam.Spec{
			Exam:   exam.Name(v.GetString("exam")),
			Stream: strings.ToUpper(strings.TrimSpace(v.GetString("stream"))),
			Year:   v.GetInt("year"),
		}
		if _, _, err := table.Resolve(spec); err != nil {
			return describeComposeError(&compose.Error{Kind: compose.InvalidSpec, Exam: spec.Exam, Stream: spec.Stream, Err: err}, table)
		}

		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		assembler, err := newAssembler(ctx, v, st, table, logger)
		if err != nil {
			return err
		}

		var composer archive.Composer = assembler
		if v.GetBool("tui") {
			composer = tuiComposer{assembler: assembler, out: cmd.ErrOrStderr()}
		}
		exams := archive.New(composer, st.ExamRepo(), v.GetInt("keep"), logger)

		res, err := exams.Get(ctx, spec, v.GetBool("reuse"))
		if err != nil {
			return describeComposeError(err, table)
		}

		if err := writeDocument(cmd, v.GetString("out"), res.Document); err != nil {
			return err
		}
		printSummary(cmd.ErrOrStderr(), res)
		return nil
	},
}

// tuiComposer runs composition behind the live progress view.
type tuiComposer struct {
	assembler *compose.Assembler
	out       io.Writer
}

func (c tuiComposer) Compose(ctx context.Context, spec exam.Spec) (exam.Document, error) {
	return composeview.Run(ctx, c.assembler, spec, tea.WithOutput(c.out))
}

func writeDocument(cmd *cobra.Command, path string, doc exam.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, res archive.Result) {
	doc := res.Document
	spec := exam.Spec{Exam: doc.Exam, Stream: doc.Stream, Year: doc.Year}
	title := fmt.Sprintf("%s: %d questions", spec, doc.Total())
	if res.Cached {
		title += " (cached)"
	}
	fmt.Fprintln(w, theme.Title.Render(title))
	for _, s := range doc.Sections {
		counts := s.CountTypes()
		var parts []string
		for _, t := range []exam.AnswerType{exam.MCQ, exam.TITA, exam.NAT} {
			if n := counts[t]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", t, n))
			}
		}
		fmt.Fprintf(w, "  %-18s %3d  %s\n", s.Name, len(s.Questions), theme.Subtitle.Render(strings.Join(parts, ", ")))
	}
	fmt.Fprintln(w, theme.Hint.Render(fmt.Sprintf("generated %d, from corpus %d, attempts %d, digest %s",
		doc.Stats.Generated, doc.Stats.Fallback, doc.Stats.Attempts, shortDigest(res.Digest))))
}

// describeComposeError adds a hint for failures the user can act on.
func describeComposeError(err error, table *exam.Table) error {
	var cerr *compose.Error
	if !errors.As(err, &cerr) {
		return err
	}
	switch cerr.Kind {
	case compose.InvalidSpec:
		var names []string
		for _, n := range table.Exams() {
			names = append(names, string(n))
		}
		return fmt.Errorf("%w (configured exams: %s; run `examforge streams` for GATE stream codes)",
			err, strings.Join(names, ", "))
	case compose.SlotUnfillable:
		return fmt.Errorf("%w (import more %s questions with `examforge corpus import`)", err, cerr.Section)
	}
	return err
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func init() {
	f := composeCmd.Flags()
	f.StringP("exam", "e", "", "Exam name (CAT, GATE)")
	f.StringP("stream", "s", "", "GATE stream code, e.g. CS")
	f.IntP("year", "y", 0, "Pattern year used to steer retrieval (0 = any)")
	f.StringP("out", "o", "-", "Output file path (- for stdout)")
	f.Bool("reuse", false, "Serve the newest stored exam for the same exam, stream and year")
	f.Bool("tui", false, "Show live progress")
	f.Int("keep", archive.DefaultKeep, "Stored exams kept per exam, stream and year")
	f.Int("concurrency", 0, "Maximum concurrent LLM calls (0 = default)")
	f.Int("attempts", 0, "Generation attempts per slot (0 = default)")
	_ = composeCmd.MarkFlagRequired("exam")
}
