package main

import (
	"os"

	"github.com/rcliao/tally-replica/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
