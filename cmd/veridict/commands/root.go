package commands

import (
	"github.com/spf13/cobra"

	"github.com/veridict/veridict/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Veridict
var RootCmd = &cobra.Command{
	Use:              "veridict",
	Short:            "veridict judgment ledger",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		NewKeygenCmd(),
		NewVersionCmd(),
	)
}
