package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示存储中的简历和向量点数量",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(ctx context.Context) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	if appCtx.store.MySQL != nil {
		resumes, err := appCtx.store.MySQL.CountResumes(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("简历数量: %d\n", resumes)
	} else {
		fmt.Println("简历数量: MySQL未配置")
	}

	if appCtx.store.Qdrant != nil {
		points, err := appCtx.store.Qdrant.CountPoints(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("向量点数量: %d\n", points)
	} else {
		fmt.Println("向量点数量: Qdrant未配置")
	}

	if appCtx.store.Redis != nil {
		if err := appCtx.store.Redis.Ping(ctx); err != nil {
			fmt.Printf("Redis缓存: 不可用 (%v)\n", err)
		} else {
			fmt.Println("Redis缓存: 可用")
		}
	} else {
		fmt.Println("Redis缓存: 未配置")
	}
	return nil
}
