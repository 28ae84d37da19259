package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deletePurgeFile bool

var deleteCmd = &cobra.Command{
	Use:   "delete <简历ID>",
	Short: "删除一份简历的记录、分块和向量点",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd.Context(), args[0])
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deletePurgeFile, "purge-file", false, "同时删除MinIO中的原始文件")
}

func runDelete(ctx context.Context, resumeID string) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	ingest, err := appCtx.buildIngestProcessor()
	if err != nil {
		return err
	}

	// 删除前取出对象键，行删掉后就查不到了
	var sourceObjectKey string
	if deletePurgeFile {
		resume, err := appCtx.store.MySQL.GetResumeByID(ctx, resumeID)
		if err != nil {
			return err
		}
		if resume == nil {
			return fmt.Errorf("简历 %s 不存在", resumeID)
		}
		sourceObjectKey = resume.SourceObjectKey
	}

	if err := ingest.Delete(ctx, resumeID); err != nil {
		return err
	}
	fmt.Printf("已删除简历 %s 的记录、分块和向量点\n", resumeID)

	if deletePurgeFile {
		if sourceObjectKey == "" {
			fmt.Println("该简历没有关联的原始文件，跳过文件删除")
			return nil
		}
		if appCtx.store.MinIO == nil {
			return fmt.Errorf("MinIO未配置，无法删除原始文件 %s", sourceObjectKey)
		}
		if err := appCtx.store.MinIO.DeleteResumeFile(ctx, sourceObjectKey); err != nil {
			return err
		}
		fmt.Printf("已删除原始文件 %s\n", sourceObjectKey)
	}
	return nil
}
