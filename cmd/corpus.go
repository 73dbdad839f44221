package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the historical question corpus",
}

var corpusImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import question dumps into the corpus index",
	Long: "Import JSON question dumps (an array or a stream of objects with\n" +
		"question_text, option1..option4, answer, exam, stream, year, topic,\n" +
		"section). Missing exam and section fields default to --exam/--section,\n" +
		"then to the file name, e.g. CAT_VARC_all_years_combined.json.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viperForCmd(cmd)
		ctx := cmd.Context()

		table, err := loadTable(v)
		if err != nil {
			return err
		}
		embedder, err := newEmbedder(v)
		if err != nil {
			return err
		}
		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		im := corpus.NewImporter(table, st.CorpusRepo(), embedder, slog.Default())
		out := cmd.OutOrStdout()
		var total corpus.Report
		for _, path := range args {
			defaults := defaultsFromFile(path)
			if e := v.GetString("exam"); e != "" {
				defaults.Exam = e
			}
			if s := v.GetString("stream"); s != "" {
				defaults.Stream = s
			}
			if s := v.GetString("section"); s != "" {
				defaults.Section = s
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			rep, err := im.Import(ctx, f, defaults)
			f.Close()
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}

			fmt.Fprintf(out, "%s: %d read, %d inserted, %d skipped\n", path, rep.Read, rep.Inserted, rep.Skipped)
			for _, p := range rep.Problems {
				slog.Debug("skipped record", "file", path, "problem", p)
			}
			if n := len(rep.Problems); n > 0 {
				fmt.Fprintf(out, "  %d invalid records (first: %s)\n", n, rep.Problems[0])
			}
			total.Read += rep.Read
			total.Inserted += rep.Inserted
			total.Skipped += rep.Skipped
		}
		if len(args) > 1 {
			fmt.Fprintf(out, "total: %d read, %d inserted, %d skipped\n", total.Read, total.Inserted, total.Skipped)
		}
		return nil
	},
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count corpus questions by exam, stream, section and type",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		stats, err := st.CorpusRepo().Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("query corpus: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(out, "Corpus is empty. Run `examforge corpus import` first.")
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-6s  %-20s  %-5s  %6s\n", "Exam", "Stream", "Section", "Type", "Count")
		fmt.Fprintln(out, strings.Repeat("─", 51))
		total := 0
		for _, s := range stats {
			stream := s.Stream
			if stream == "" {
				stream = "-"
			}
			fmt.Fprintf(out, "%-6s  %-6s  %-20s  %-5s  %6d\n", s.Exam, stream, truncate(s.Section, 20), s.AnswerType, s.Count)
			total += s.Count
		}
		fmt.Fprintln(out, strings.Repeat("─", 51))
		fmt.Fprintf(out, "%-44s  %6d\n", "TOTAL", total)
		return nil
	},
}

// defaultsFromFile reads exam and section from names such as
// CAT_VARC_all_years_combined.json or GATE_CS_....json. For GATE the
// second part is a stream code when it names one.
func defaultsFromFile(path string) corpus.Defaults {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return corpus.Defaults{}
	}
	name, err := exam.ParseName(parts[0])
	if err != nil {
		return corpus.Defaults{}
	}
	d := corpus.Defaults{Exam: string(name)}
	if name == exam.GATE {
		if st, ok := exam.LookupStream(parts[1]); ok {
			d.Stream = st.Code
			return d
		}
	}
	d.Section = parts[1]
	return d
}

func init() {
	f := corpusImportCmd.Flags()
	f.String("exam", "", "Exam for records that do not name one")
	f.String("stream", "", "GATE stream for records that do not name one")
	f.String("section", "", "Section for records that do not name one")

	corpusCmd.AddCommand(corpusImportCmd)
	corpusCmd.AddCommand(corpusStatsCmd)
}
