package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Ingest a push body or a raw Tally XML export",
		Long:  "Ingest a JSON push body or a raw Tally XML export from a file or stdin. The format is taken from --format, the file extension, or the first non-blank byte.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runPush,
	}

	cmd.Flags().String("format", "", "Input format: json or xml (default: detect)")
	cmd.Flags().String("source", "", "Source label for raw XML input")

	RootCmd.AddCommand(cmd)
}

func runPush(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	source, _ := cmd.Flags().GetString("source")

	var (
		data []byte
		err  error
		name string
	)
	if len(args) == 1 && args[0] != "-" {
		name = args[0]
		data, err = os.ReadFile(name)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	if format == "" {
		format = detectFormat(name, data)
	}

	_, svc, _, kv := mustOpen()
	defer kv.Close()

	switch format {
	case "json":
		res, err := svc.Push(cmd.Context(), data)
		if err != nil {
			exitErr("push", err)
		}
		printJSON(res)
	case "xml":
		res, err := svc.PushXML(cmd.Context(), string(data), source)
		if err != nil {
			exitErr("push", err)
		}
		printJSON(res)
	default:
		exitErr("push", fmt.Errorf("unknown format %q", format))
	}
}

// detectFormat picks json or xml from the file extension, falling back to
// the first non-blank byte of data.
func detectFormat(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".xml":
		return "xml"
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return "xml"
	}
	return "json"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
