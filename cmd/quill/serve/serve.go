package servecmder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/quill/api"
	"github.com/papercomputeco/quill/pkg/auth"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/generate"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/oauth"
	"github.com/papercomputeco/quill/pkg/payments"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/postgres"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
	"github.com/papercomputeco/quill/pkg/trends"
)

const serveLongDesc string = `Run the quill API server.

Configuration is read from the TOML file given with --config, then a
.env file in the working directory, then QUILL_* environment variables.
Collaborators without credentials are disabled and their routes answer
503 Service Unavailable.

Examples:
  quill serve
  quill serve --config /etc/quill/quill.toml --listen :9000 --debug`

const serveShortDesc string = "Run the API server"

type serveCommander struct {
	configPath    string
	listen        string
	debug         bool
	secureCookies bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.secureCookies, "secure-cookies", false, "Mark OAuth cookies as Secure")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if c.listen != "" {
		cfg.Server.ListenAddr = c.listen
	}
	if c.debug {
		cfg.Log.Debug = true
	}

	log := logger.NewLogger(cfg.Log)
	defer log.Sync()

	log.Info("quill starting",
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("model", cfg.Generate.Model),
		zap.Bool("debug", cfg.Log.Debug),
	)

	stories, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer stories.Close()

	collab, err := buildCollaborators(cfg, log)
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		SecureCookies: c.secureCookies,
	}, stories, collab, log)
	if err != nil {
		return fmt.Errorf("could not create api server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return server.Shutdown()
	}
}

func openStorage(ctx context.Context, cfg config.Storage) (storage.Driver, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		d, err := sqlite.NewDriver(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite storage %s: %w", cfg.DSN, err)
		}
		return d, nil
	case config.DriverPostgres:
		d, err := postgres.NewDriver(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("could not open postgres storage: %w", err)
		}
		return d, nil
	default:
		return inmemory.NewDriver(), nil
	}
}

// buildCollaborators constructs every configured external client. Clients
// without credentials are left nil so their routes report 503.
func buildCollaborators(cfg config.Config, log *zap.Logger) (api.Collaborators, error) {
	// Generation streams are unbounded; the other collaborators answer quickly.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	collab := api.Collaborators{
		Generator: generate.NewClient(cfg.Generate, log.Named("generate")),
	}

	if cfg.Auth.Enabled() {
		r, err := auth.NewRegistrar(cfg.Auth, httpClient)
		if err != nil {
			return api.Collaborators{}, fmt.Errorf("could not create registrar: %w", err)
		}
		collab.Registrar = r
	} else {
		log.Warn("auth provider not configured, registration disabled")
	}

	if cfg.Payments.Enabled() {
		p, err := payments.NewClient(cfg.Payments, httpClient)
		if err != nil {
			return api.Collaborators{}, fmt.Errorf("could not create payments client: %w", err)
		}
		collab.Payments = p
	} else {
		log.Warn("payment processor not configured, payments disabled")
	}

	if cfg.Trends.Enabled() {
		t, err := trends.NewClient(cfg.Trends, httpClient)
		if err != nil {
			return api.Collaborators{}, fmt.Errorf("could not create trends client: %w", err)
		}
		collab.Trends = t
	} else {
		log.Warn("search api not configured, trends disabled")
	}

	connector := oauth.NewConnector(cfg.OAuth)
	if configured := connector.Configured(); len(configured) > 0 {
		collab.Connector = connector
		log.Info("social platforms configured", zap.Strings("platforms", configured))
	} else {
		log.Warn("no social platforms configured, connect disabled")
	}

	return collab, nil
}
