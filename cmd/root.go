package cmd

import (
	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "examforge",
	Short: "Compose CAT and GATE mock exams",
	Long: "examforge assembles complete CAT and GATE mock exams from a corpus of\n" +
		"historical questions and an LLM, with exact per-section quotas.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("db", "", "Path to SQLite database file (overrides EXAMFORGE_DB env var)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("layouts", "", "Section layout YAML file (default: built-in CAT and GATE layouts)")
	f.String("embedder", "hash", "Embedder for corpus import and retrieval (hash, openai)")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(corpusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db (flag, env or config
// file) first, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p := viperForCmd(cmd).GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath)
}
