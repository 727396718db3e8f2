package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrupp/lostbuddy/internal/app"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc/authclient"
)

// rootOptions holds the flags shared by all subcommands.
type rootOptions struct {
	configFile string
	remote     string
	stateDir   string
	cfg        app.Config
}

// NewRootCmd creates the root command for the lbauth CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "lbauth",
		Short: "lbauth - LostBuddy account client",
		Long: `lbauth registers LostBuddy accounts and manages the login session.

By default it works directly on the configured local storage. With --remote
it talks to a running account server instead.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.remote, "remote", "", "base URL of an account server (e.g. http://localhost:8080)")
	cmd.PersistentFlags().StringVar(&opts.stateDir, "state-dir", "", "directory holding the remote client id (default: user config dir)")

	cmd.AddCommand(newRegisterCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newWhoamiCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

func (opts *rootOptions) load(ctx context.Context) error {
	cfg, err := app.LoadConfig(ctx, opts.configFile)
	if err != nil {
		return err
	}

	if err := logging.Configure(ctx, cfg.Log, app.Name+".lbauth"); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	opts.cfg = cfg

	return nil
}

// withClient runs fn against the local service or, with --remote, against
// the HTTP API. The remote client ID is kept in the state directory so that
// consecutive invocations share one session.
func (opts *rootOptions) withClient(ctx context.Context, fn func(authclient.AuthClient) error) (err error) {
	if opts.remote == "" {
		return opts.withLocal(ctx, fn)
	}

	idFile, err := opts.clientIDFile()
	if err != nil {
		return err
	}

	clientCfg := opts.cfg.Remote
	clientCfg.BaseURL = opts.remote
	clientCfg.ClientID = readClientID(idFile)

	remote := authclient.NewHTTPClient(clientCfg, nil)

	defer func() {
		if id := remote.ClientID(); id != "" && id != clientCfg.ClientID {
			err = errors.Join(err, writeClientID(idFile, id))
		}
	}()

	return fn(remote)
}

func (opts *rootOptions) withLocal(ctx context.Context, fn func(authclient.AuthClient) error) (err error) {
	local, err := app.New(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, local.Close()) }()

	return fn(local.Service)
}

func (opts *rootOptions) clientIDFile() (string, error) {
	dir := opts.stateDir
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("user config dir: %w", err)
		}

		dir = filepath.Join(configDir, app.Name)
	}

	return filepath.Join(dir, "client_id"), nil
}

func readClientID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func writeClientID(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write client id: %w", err)
	}

	return nil
}
