package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	generatecmder "github.com/papercomputeco/quill/cmd/quill/generate"
	servecmder "github.com/papercomputeco/quill/cmd/quill/serve"
)

const rootLongDesc string = `quill is the backend for a story generation app.

It serves the JSON API (registration, payments, social connections,
stories, trends and story generation) and can generate stories
directly from the command line.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quill",
		Short:        "Story generation backend",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
