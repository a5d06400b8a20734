package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veridict/veridict/src/version"
)

// NewVersionCmd returns the command that prints the version string
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			color.Green(version.Version)
		},
	}
}
