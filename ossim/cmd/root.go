// Package cmd provides the command-line interface of ossim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// EnvPrefix is the prefix of the environment variables that provide flag
// defaults. OSSIM_TOTAL sets --total, OSSIM_MONITOR_PORT sets --monitor-port.
const EnvPrefix = "OSSIM_"

// NewRootCmd creates the ossim command. Without a subcommand, it runs a
// simulation.
func NewRootCmd() *cobra.Command {
	runCmd := newRunCmd()

	rootCmd := &cobra.Command{
		Use:   "ossim",
		Short: "ossim simulates process scheduling and demand paging.",
		Long: `ossim simulates an operating system kernel that launches ` +
			`processes, translates their memory references, and swaps pages ` +
			`between frames and disk on a simulated clock.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(cmd.Flags())
		},
		RunE: runCmd.RunE,
	}

	rootCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.AddCommand(runCmd, newReportCmd(), newTraceCmd())

	return rootCmd
}

// Execute runs the root command and exits with a non-zero status on error.
func Execute() {
	rootCmd := NewRootCmd()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		atexit.Exit(1)
	}
}

// loadEnv reads .env if there is one and sets the flags that are not given
// on the command line from OSSIM_* variables.
func loadEnv(flags *pflag.FlagSet) error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var errs []error

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}

		value, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		err := flags.Set(f.Name, value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envName(f.Name), err))
		}
	})

	return errors.Join(errs...)
}

func envName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
