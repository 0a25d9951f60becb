package main

import (
	"os"

	bridgectlcmd "github.com/fleetware/cardbridge/pkg/bridgectl/cmd"
)

func main() {
	root := bridgectlcmd.NewRootCommand(bridgectlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
