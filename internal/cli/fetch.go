package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tally-replica/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print the latest stored document",
		Run:   runFetch,
	}

	RootCmd.AddCommand(cmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	_, svc, _, kv := mustOpen()
	defer kv.Close()

	data, err := svc.Fetch(cmd.Context())
	if errors.Is(err, store.ErrEmpty) {
		fmt.Println(`{"status":"empty"}`)
		return
	}
	if err != nil {
		exitErr("fetch", err)
	}
	fmt.Println(data)
}
