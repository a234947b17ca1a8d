package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/tally-replica/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a document from JSON",
		Long:  "Store a document from JSON on stdin, replacing the latest one. Expects the format produced by fetch.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		exitErr("parse json", err)
	}

	_, svc, _, kv := mustOpen()
	defer kv.Close()

	res, err := svc.Store(cmd.Context(), &doc)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(res)
}
