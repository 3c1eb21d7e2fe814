package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/todo-stack/devops/internal/docker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of all services",
	Long:  `Display health of the database and the web application.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		settings, err := a.settings.Get()
		if err != nil {
			return a.fail(err)
		}

		status := docker.Status(cmd.Context(), a.prober(), settings.AppURL())

		// Print status
		color.Cyan("Service          Status        Address")
		color.Cyan("──────────────────────────────────────────────")

		printServiceStatus("Database", status.Database, settings.DBHost, settings.DBPort)
		printServiceStatus("Web app", status.App, settings.DisplayHost(), settings.AppPort)

		if status.DBError != nil {
			a.log.Debug("Database ping failed", zap.Error(status.DBError))
			color.Yellow("\nDatabase: %v", status.DBError)
			color.Cyan("Check the logs: '%s'", a.compose.LogsHint(a.dbService()))
		}
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [service]",
	Short: "Show service logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		follow, _ := cmd.Flags().GetBool("follow")

		service := ""
		if len(args) == 1 {
			service = args[0]
		}
		if err := a.compose.Logs(cmd.Context(), service, follow); err != nil {
			return a.fail(err)
		}
		return nil
	},
}

func printServiceStatus(name string, status docker.ServiceStatus, host string, port int) {
	var statusText string
	switch status {
	case docker.ServiceUp:
		statusText = color.GreenString("✓ UP      ")
	case docker.ServiceDown:
		statusText = color.RedString("✗ DOWN    ")
	case docker.ServiceStarting:
		statusText = color.YellowString("⚠ STARTING")
	default:
		statusText = color.RedString("✗ UNKNOWN ")
	}

	color.New().Printf("%-16s %s    %s:%d\n", name, statusText, host, port)
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
}
