package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "chimera",
		Short:         "Multi-agent sales assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")
	root.AddCommand(serveCMD(), migrateCMD(), chatCMD(), ingestCMD(), tokenCMD(), auditCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
