package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// 实际版本号在构建命令中注入
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印版本号",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s\n", app, version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
