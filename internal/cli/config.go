package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/todo-stack/devops/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration and connection settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.console.Plain("%s", config.Display(a.cfg))
		a.console.Plain("  DB service:         %s\n", a.dbService())

		settings, err := a.settings.Get()
		if err != nil {
			if errors.Is(err, config.ErrSettingsMissing) {
				a.console.Warn("%v", err)
				return nil
			}
			return a.fail(err)
		}
		a.console.Plain("%s", settings.Masked())
		a.console.Plain("  URL:                %s", settings.AppURL())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
