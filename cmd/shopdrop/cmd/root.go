// Package cmd is the shopdrop command tree. Every command builds its own
// application context from the config, runs, and closes it again, so the
// session file is only locked while a command is running.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/config"
	"github.com/naveenspark/shopdrop/internal/notify"
)

// env carries what the commands share: persistent flag values, the app
// options tests override, and a reader over stdin for prompts.
type env struct {
	version string
	apiURL  string
	dataDir string
	opts    app.Options
	in      *bufio.Reader
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	root := newRootCmd(&env{version: version})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		return 1
	}
	return 0
}

// errorLine is the one line printed for a failed command.
func errorLine(err error) string {
	if title := notify.TitleOf(err); title != "" {
		return "error: " + title + ": " + notify.Describe(err)
	}
	return "error: " + notify.Describe(err)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "shopdrop",
		Short: "ShopDrop is a terminal storefront",
		Long: `Browse the catalog, keep a cart in sync with the store and pay through
the hosted checkout page. Run without a command to open the interactive UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          e.withApp(runUI),
	}

	root.PersistentFlags().StringVar(&e.apiURL, "api-url", "", "Store API base URL (default $SHOPDROP_API_URL or "+config.DefaultAPIURL+")")
	root.PersistentFlags().StringVar(&e.dataDir, "data-dir", "", "Directory for the session and log (default $SHOPDROP_DATA_DIR or ~/.shopdrop)")

	root.AddCommand(
		newUICmd(e),
		newVersionCmd(e),
		newLoginCmd(e),
		newSignupCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newAccountCmd(e),
		newProductsCmd(e),
		newProductCmd(e),
		newCartCmd(e),
		newCheckoutCmd(e),
		newOrdersCmd(e),
		newOrderCmd(e),
		newDevServerCmd(e),
	)
	return root
}

// config resolves settings: flag, then environment, then default.
func (e *env) config() config.Config {
	cfg := config.Load()
	if e.apiURL != "" {
		cfg.APIURL = strings.TrimRight(e.apiURL, "/")
	}
	if e.dataDir != "" {
		cfg.DataDir = e.dataDir
	}
	return cfg
}

// withApp opens the application for the duration of fn.
func (e *env) withApp(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), e.config(), e.opts)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck
		return fn(cmd, a, args)
	}
}

// signedIn is withApp for commands that need a session.
func (e *env) signedIn(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return e.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		if _, err := a.Session.RequireUser(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, a, args)
	})
}

// prompt prints label and reads one line from stdin. Lines are read through
// one shared reader so consecutive prompts see consecutive lines.
func (e *env) prompt(cmd *cobra.Command, label string) (string, error) {
	if e.in == nil {
		e.in = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.OutOrStdout(), promptStyle.Render(label)+": ")
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// flagOrPrompt returns the flag value when set, otherwise asks for it.
func (e *env) flagOrPrompt(cmd *cobra.Command, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return e.prompt(cmd, label)
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "shopdrop "+e.version)
		},
	}
}
