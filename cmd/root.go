package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const logLevelEnv = "PEICON_LOG_LEVEL"

var (
	logLevel string
	logger   = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "peicon",
	Short: "peicon extracts application icons from Windows executables",
	Long: `A simple CLI tool for finding, extracting and upscaling the icon
				  embedded in the resource section of a PE executable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	// a missing .env file is fine
	_ = godotenv.Load()
	defaultLevel := os.Getenv(logLevelEnv)
	if defaultLevel == "" {
		defaultLevel = logrus.WarnLevel.String()
	}
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", defaultLevel, "log level (panic, fatal, error, warn, info, debug, trace), defaults to $"+logLevelEnv)
}

// exitStatus ends the process with a status code and no message.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var status exitStatus
		if errors.As(err, &status) {
			os.Exit(int(status))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
