package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samvad-hq/rutas-relay/internal/config"
	"github.com/samvad-hq/rutas-relay/internal/domain"
	"github.com/samvad-hq/rutas-relay/internal/logger"
	"github.com/samvad-hq/rutas-relay/pkg/httpclient"
	"github.com/samvad-hq/rutas-relay/pkg/routes"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// apiFlags override the API settings loaded from config.
type apiFlags struct {
	baseURL string
	token   string
	timeout time.Duration
}

func (f *apiFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.baseURL, "base-url", "", "routes API base URL (overrides API_BASE_URL)")
	fs.StringVar(&f.token, "token", "", "bearer token (overrides API_TOKEN)")
	fs.DurationVar(&f.timeout, "timeout", 0, "request timeout (overrides API_TIMEOUT_SECONDS)")
}

// loadConfigFn is swapped in tests.
var loadConfigFn = config.Load

type cli struct {
	flags apiFlags
	out   io.Writer
	svc   *routes.Service
	log   logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout, log: &logger.NopLogger{}}

	root := &cobra.Command{
		Use:           "routesctl",
		Short:         "List and create routes on a rutas API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	c.flags.register(root.PersistentFlags())
	root.SetOut(c.out)

	root.AddCommand(c.listCmd(), c.createCmd())
	return root
}

func (c *cli) init() error {
	cfg, err := loadConfigFn()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.flags.baseURL != "" {
		cfg.APIBaseURL = c.flags.baseURL
	}
	if c.flags.token != "" {
		cfg.APIToken = c.flags.token
	}
	if c.flags.timeout > 0 {
		cfg.APITimeout = c.flags.timeout
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return errors.New("api base url is empty")
	}

	if log, err := logger.Init(cfg); err == nil {
		c.log = log
	}
	c.log.DebugObj("routesctl api target", "api", map[string]any{
		"base_url": cfg.APIBaseURL,
		"timeout":  cfg.APITimeout.String(),
		"auth":     cfg.APIToken != "",
	})

	c.svc = routes.NewService(httpclient.NewRestyClientWithOptions(httpclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		AuthToken: cfg.APIToken,
	}))
	return nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every route as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := c.svc.FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			if all == nil {
				all = []domain.Route{}
			}
			return writeJSON(cmd.OutOrStdout(), all)
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	var data, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a route from inline JSON or a JSON/YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := readRecord(data, file)
			if err != nil {
				return err
			}
			created, err := c.svc.Create(cmd.Context(), record)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", `route as JSON, e.g. '{"name":"Route B"}'`)
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a .json, .yaml or .yml route file")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	cmd.MarkFlagsOneRequired("data", "file")
	return cmd
}

// readRecord decodes the route payload from --data or --file.
func readRecord(data, file string) (domain.Route, error) {
	var record domain.Route
	if file == "" {
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("decode --data: %w", err)
		}
		return record, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &record)
	default:
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		err = dec.Decode(&record)
	}
	if err != nil {
		return nil, fmt.Errorf("decode route file: %w", err)
	}
	return record, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
