package generatecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/generate"
	"github.com/papercomputeco/quill/pkg/logger"
)

const generateLongDesc string = `Generate a story from a prompt.

The prompt is sent to the configured generation API and the streamed
response is accumulated into a single story. When writing to a terminal
the story is rendered as Markdown; use --raw to print plain text.

Examples:
  quill generate "a fox who learns to fly"
  quill generate --model mistral --per-chunk --stats "a haunted lighthouse"`

const generateShortDesc string = "Generate a story from a prompt"

type generateCommander struct {
	configPath string
	url        string
	model      string
	perChunk   bool
	stats      bool
	raw        bool
	debug      bool
}

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVar(&cmder.url, "url", "", "Generation endpoint (overrides config)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (overrides config)")
	cmd.Flags().BoolVar(&cmder.perChunk, "per-chunk", false, "Split stream lines per chunk instead of buffering partial lines")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Print line and skipped-line counts to stderr")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print plain text even on a terminal")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *generateCommander) run(ctx context.Context, cmd *cobra.Command, prompt string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	genCfg := cfg.Generate
	if c.url != "" {
		genCfg.URL = c.url
	}
	if c.model != "" {
		genCfg.Model = c.model
	}
	if c.perChunk {
		genCfg.PerChunk = true
	}

	log := zap.NewNop()
	if c.debug {
		cfg.Log.Debug = true
		log = logger.NewLogger(cfg.Log)
		defer log.Sync()
	}

	result, err := generate.NewClient(genCfg, log).Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("could not generate story: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := c.print(out, result.Text); err != nil {
		return err
	}

	if c.stats {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d lines, %d skipped\n", result.Lines, result.Skipped)
	}
	return nil
}

func (c *generateCommander) print(out io.Writer, text string) error {
	if c.raw || !isTerminal(out) {
		_, err := fmt.Fprintln(out, text)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("could not create markdown renderer: %w", err)
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("could not render story: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
