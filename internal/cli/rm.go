package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete the stored document",
		Run:   runRm,
	}

	cmd.Flags().StringP("name", "n", "", "Object name (default: config object_name)")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")

	cfg, _, ls, kv := mustOpen()
	defer kv.Close()
	if name == "" {
		name = cfg.ObjectName
	}

	n, err := ls.Delete(cmd.Context(), name)
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"name":%q,"chunks":%d}`+"\n", name, n)
}
