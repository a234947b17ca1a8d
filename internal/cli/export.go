package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/tally-replica/internal/sheet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest document as an XLSX workbook",
		Long:  "Export the latest document as an XLSX workbook with one sheet per category plus an All sheet.",
		Run:   runExport,
	}

	cmd.Flags().StringP("out", "o", "tally-latest.xlsx", "Output file")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	_, svc, _, kv := mustOpen()
	defer kv.Close()

	doc, err := svc.Latest(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	f, err := os.Create(out)
	if err != nil {
		exitErr("create output", err)
	}
	if err := sheet.Write(f, doc); err != nil {
		f.Close()
		exitErr("write workbook", err)
	}
	if err := f.Close(); err != nil {
		exitErr("write workbook", err)
	}

	fmt.Printf(`{"ok":true,"file":%q}`+"\n", out)
}
