package cli

import (
	"github.com/spf13/cobra"

	"github.com/todo-stack/devops/internal/envfile"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the env file holding connection settings",
}

var envCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the env file with fresh credentials",
	Long: `Write the env file (envs/cli.env by default) with the configured defaults
and a newly generated database password.

An existing file is kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		creator := &envfile.Creator{
			Path:     a.settings.Path(),
			Defaults: a.cfg.EnvDefaults,
		}
		if err := creator.Create(force); err != nil {
			return a.fail(err)
		}

		a.console.Success("Environment file written to %s", creator.Path)
		return nil
	},
}

func init() {
	envCreateCmd.Flags().Bool("force", false, "Overwrite an existing env file")

	envCmd.AddCommand(envCreateCmd)
}
