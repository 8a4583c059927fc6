package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/specialistvlad/modenv/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is what the process should do with the parsed configuration.
type Command string

const (
	// CommandRun enters the full environment and, when configured, serves
	// health and metrics until interrupted.
	CommandRun Command = "run"
	// CommandInspect enters the full environment and prints the registries.
	CommandInspect Command = "inspect"
)

// Invocation is the result of a successful parse.
type Invocation struct {
	Command Command
	Config  *app.Config
}

type options struct {
	modulesPath     string
	configDir       string
	preview         []string
	logFormat       string
	logLevel        string
	healthcheckPort int
	notifyURL       string
	notifyNamespace string
	notifyEvent     string
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly (help was shown),
// or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		opts options
		inv  *Invocation
	)

	build := func(cmd Command) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.modulesPath = args[0]
			}
			cfg, err := app.NewConfig(app.Config{
				ModulesPath:     opts.modulesPath,
				ConfigDir:       opts.configDir,
				Preview:         opts.preview,
				LogFormat:       opts.logFormat,
				LogLevel:        opts.logLevel,
				HealthcheckPort: opts.healthcheckPort,
				NotifyURL:       opts.notifyURL,
				NotifyNamespace: opts.notifyNamespace,
				NotifyEvent:     opts.notifyEvent,
			})
			if err != nil {
				return err
			}
			inv = &Invocation{Command: cmd, Config: cfg}
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "modenv [MODULES_PATH]",
		Short: "modenv - module environment switcher",
		Long: `modenv discovers the modules under MODULES_PATH, rebuilds the type,
record and handler registries for them and installs the prefab formats
bound to the new registries.

With --preview it then enters a preview of the named modules and switches
back to the full environment.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          build(CommandRun),
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.modulesPath, "modules-path", "modules", "Path to the directory containing module directories.")
	pf.StringVar(&opts.configDir, "config-dir", "", "Directory of per-module configs, <dir>/<module>/<name>.hcl.")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&opts.notifyURL, "notify-url", "", "Socket.IO server to announce completed switches to.")
	pf.StringVar(&opts.notifyNamespace, "notify-namespace", "/", "Socket.IO namespace for announcements.")
	pf.StringVar(&opts.notifyEvent, "notify-event", "", "Socket.IO event name for announcements.")

	root.Flags().StringSliceVarP(&opts.preview, "preview", "p", nil, "Module IDs to preview after the full switch, comma separated.")
	root.Flags().IntVar(&opts.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")

	root.AddCommand(&cobra.Command{
		Use:           "inspect [MODULES_PATH]",
		Short:         "Enter the full environment and print the registries",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          build(CommandInspect),
	})

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if inv == nil {
		// Help or version output; nothing to run.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", inv.Command)
	return inv, false, nil
}
