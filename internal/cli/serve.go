package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/tally-replica/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP push/fetch service",
		Run:   runServe,
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address (overrides config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	listen, _ := cmd.Flags().GetString("listen")

	cfg, svc, _, kv := mustOpen()
	defer kv.Close()
	if listen != "" {
		cfg.Listen = listen
	}

	app := server.New(svc, server.Options{BodyLimit: cfg.BodyLimit})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.Infow("listening", "addr", cfg.Listen, "db", kv.Path())
	if err := app.Listen(cfg.Listen); err != nil {
		exitErr("listen", err)
	}
}
