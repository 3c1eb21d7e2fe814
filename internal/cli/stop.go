package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage application services using Docker Compose",
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop all running services",
	Long:  `Stop all running service containers without removing them.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.console.Info("Stopping all services...")
		if err := a.compose.Stop(cmd.Context()); err != nil {
			return a.fail(err)
		}

		a.console.Done("Services stopped.")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove all services (keeps volumes)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.console.Info("Stopping and removing service containers...")
		if err := a.compose.Down(cmd.Context()); err != nil {
			return a.fail(err)
		}

		a.console.Done("Services are down.")
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Stop/remove services AND delete volumes (all data)",
	Long: `Stop and remove all services and delete their volumes.

This permanently deletes the database. You are asked to confirm unless
--yes is given; declining changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		assumeYes, _ := cmd.Flags().GetBool("yes")

		a.warnPurge()
		purged, err := a.compose.Purge(cmd.Context(), a.confirmer(assumeYes))
		if err != nil {
			return a.fail(err)
		}
		if !purged {
			a.console.Info("Aborted. Nothing was removed.")
			return nil
		}

		a.console.Done("Services and volumes purged.")
		return nil
	},
}

// warnPurge explains what a purge deletes.
func (a *app) warnPurge() {
	a.console.Alert("WARNING: This will stop all services and permanently delete all data (database, etc).")
	if a.manifest != nil {
		if volumes := a.manifest.NamedVolumes(); len(volumes) > 0 {
			a.console.Alert("Volumes to be deleted: %s", strings.Join(volumes, ", "))
		}
	}
}

func init() {
	purgeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	serviceCmd.AddCommand(startCmd, stopCmd, downCmd, purgeCmd, startDevCmd, statusCmd, pullCmd, logsCmd)
}
