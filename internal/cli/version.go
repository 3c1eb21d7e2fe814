package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devops version %s\n", cmd.Root().Version)
		fmt.Println("\nRequires:")
		fmt.Println("  docker compose:    v2")
		fmt.Println("  Gel server:        6.x (SQL endpoint enabled)")
	},
}
