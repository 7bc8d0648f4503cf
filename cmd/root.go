package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// cfgFile is the --config override, consumed by loadConfig in every
// subcommand.
var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "courtsched",
		Short: "Court booking bot that grabs slots the moment they open",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $COURTSCHED_CONFIG, then config/config.yaml)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newRegistrationsCmd())
	root.AddCommand(newAvailabilityCmd())
	root.AddCommand(newManualCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
