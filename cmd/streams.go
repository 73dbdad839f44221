package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/exam"
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "List GATE stream codes",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, s := range exam.GATEStreams() {
			fmt.Fprintf(out, "%-3s  %s\n", s.Code, s.Name)
		}
	},
}
