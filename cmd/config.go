package cmd

import (
	"fmt"

	"resume-rag-go/internal/config"

	"github.com/spf13/cobra"
)

var configOutPath string

var configCmd = &cobra.Command{
	Use:   "init-config",
	Short: "生成示例配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateSampleConfig(configOutPath); err != nil {
			return fmt.Errorf("生成示例配置失败: %w", err)
		}
		fmt.Printf("示例配置已写入 %s，请填入API密钥和连接地址。\n", configOutPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOutPath, "output", "o", "config.yaml", "输出文件路径")
}
