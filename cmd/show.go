package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var showWithURL bool

var showCmd = &cobra.Command{
	Use:   "show <简历ID>",
	Short: "查看一份已入库简历的记录和分块",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showWithURL, "url", false, "同时输出原始文件的预签名下载链接")
}

func runShow(ctx context.Context, resumeID string) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	if appCtx.store.MySQL == nil {
		return fmt.Errorf("MySQL未配置或初始化失败")
	}

	resume, err := appCtx.store.MySQL.GetResumeByID(ctx, resumeID)
	if err != nil {
		return err
	}
	if resume == nil {
		return fmt.Errorf("简历 %s 不存在", resumeID)
	}

	fmt.Printf("简历ID:   %s\n", resume.ResumeID)
	fmt.Printf("姓名:     %s\n", resume.Name)
	fmt.Printf("电话:     %s\n", resume.Phone)
	fmt.Printf("邮箱:     %s\n", resume.Email)
	fmt.Printf("教育:     %s\n", string(resume.EducationJSON))
	fmt.Printf("技能:     %s\n", string(resume.SkillsJSON))
	fmt.Printf("解析置信: %s\n", resume.ParseConfidence)
	fmt.Printf("入库时间: %s\n", resume.CreatedAt.Format("2006-01-02 15:04:05"))

	chunks, err := appCtx.store.MySQL.GetChunksByResumeID(ctx, resumeID)
	if err != nil {
		return err
	}
	fmt.Printf("分块数:   %d\n", len(chunks))

	if appCtx.store.Qdrant != nil {
		points, err := appCtx.store.Qdrant.GetPointsByResumeID(ctx, resumeID)
		if err != nil {
			return err
		}
		fmt.Printf("向量点数: %d\n", len(points))
	}

	if showWithURL {
		if appCtx.store.MinIO == nil {
			return fmt.Errorf("MinIO未配置，无法生成下载链接")
		}
		if resume.SourceObjectKey == "" {
			fmt.Println("下载链接: 该简历为直接入库，没有原始文件")
			return nil
		}
		url, err := appCtx.store.MinIO.GetPresignedURL(ctx, resume.SourceObjectKey, 15*time.Minute)
		if err != nil {
			return err
		}
		fmt.Printf("下载链接: %s\n", url)
	}
	return nil
}
