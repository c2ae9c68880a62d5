package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/config"
	"library-lending/library"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		envFile   string
	)

	cmd := &cobra.Command{
		Use:          "library",
		Short:        "Lending desk for a small in-memory library",
		Long:         "Runs the library menu: browse, borrow, return and donate books. All state lives in memory and is gone when the program exits.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				if err := cfg.SetLogLevel(logLevel); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("log-format") {
				if err := cfg.SetLogFormat(logFormat); err != nil {
					return err
				}
			}
			return runMenu(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "optional dotenv file with LIBRARY_* settings")
	return cmd
}

func runMenu(in io.Reader, out, errOut io.Writer, cfg config.Config) error {
	logger := cfg.Logger(errOut)

	opts := library.DefaultOptions()
	opts.Policy = cfg.Policy
	opts.PasswordCost = cfg.PasswordCost
	opts.Logger = logger

	manager, err := library.NewLibraryManager(opts)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer manager.Close()

	if err := manager.Seed(); err != nil {
		return fmt.Errorf("seed library: %w", err)
	}
	logger.Debug("library ready", "books", len(library.SeedBooks), "accounts", len(library.SeedAccounts))

	s := newSession(in, out, manager)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.readPassword = func(prompt string) (string, error) { return readPassword(f, out, prompt) }
		s.clearScreen = true
	}
	return s.run()
}

// readPassword securely reads a password with masking
func readPassword(f *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	bytePassword, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}
