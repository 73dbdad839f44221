package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/archive"
	"github.com/examforge/examforge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exam composition HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viperForCmd(cmd)
		logger := slog.Default()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		table, err := loadTable(v)
		if err != nil {
			return err
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
		exams := archive.New(assembler, st.ExamRepo(), v.GetInt("keep"), logger)

		srv := server.New(exams, server.Config{
			Addr:           v.GetString("addr"),
			ComposeTimeout: v.GetDuration("compose-timeout"),
		}, logger)
		return srv.Serve(ctx)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Duration("compose-timeout", 0, "Maximum time for one composition request (0 = no limit)")
	f.Int("keep", archive.DefaultKeep, "Stored exams kept per exam, stream and year")
	f.Int("concurrency", 0, "Maximum concurrent LLM calls per request (0 = default)")
	f.Int("attempts", 0, "Generation attempts per slot (0 = default)")
}
