package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics for the stored document",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, _, ls, kv := mustOpen()
	defer kv.Close()

	stats, err := ls.Stats(cmd.Context(), cfg.ObjectName)
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(stats)
}
