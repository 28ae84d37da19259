package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"resume-rag-go/internal/types"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	thresholdStrict  = "90 - 严格匹配"
	thresholdHigh    = "70 - 高匹配"
	thresholdMedium  = "50 - 中等匹配"
	thresholdAll     = "0 - 全部候选"
	thresholdCustom  = "自定义阈值"
	thresholdQuitOpt = "退出"
)

var (
	queryThresholdFlag float64
	queryOnce          bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "对岗位描述执行候选人检索和排名",
	Long: `交互式输入岗位描述（多行，单独一行输入END结束），选择匹配阈值，
输出按匹配度降序排列的候选人表格。使用--once和--threshold可跳过交互循环。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Float64Var(&queryThresholdFlag, "threshold", -1, "匹配阈值[0,100]，设置后不再弹出阈值菜单")
	queryCmd.Flags().BoolVar(&queryOnce, "once", false, "执行一轮查询后退出")
}

func runQuery(ctx context.Context) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	ranker, err := appCtx.buildRanker()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		description, err := readJobDescription(reader)
		if err != nil {
			return err
		}
		if strings.TrimSpace(description) == "" {
			fmt.Println("岗位描述为空，结束。")
			return nil
		}

		threshold := queryThresholdFlag
		if threshold < 0 {
			threshold, err = promptThreshold()
			if err != nil {
				return err
			}
			if threshold < 0 {
				// 用户选择退出
				return nil
			}
		}

		results, reports, err := ranker.RankCandidates(ctx, description, threshold)
		if err != nil {
			return fmt.Errorf("排名失败: %w", err)
		}

		printChunkReports(reports)
		printResults(results, threshold)

		if queryOnce {
			return nil
		}
		fmt.Println()
	}
}

// readJobDescription 读取多行岗位描述，单独一行END结束输入
func readJobDescription(reader *bufio.Reader) (string, error) {
	fmt.Println("请输入岗位描述（多行，单独一行输入END结束）:")
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == "END" {
			break
		}
		if trimmed != "" || len(lines) > 0 {
			lines = append(lines, trimmed)
		}
		if err != nil {
			// EOF时用已读内容
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

// promptThreshold 弹出阈值选择菜单，返回-1表示用户选择退出
func promptThreshold() (float64, error) {
	prompt := promptui.Select{
		Label: "选择匹配阈值",
		Items: []string{thresholdStrict, thresholdHigh, thresholdMedium, thresholdAll, thresholdCustom, thresholdQuitOpt},
	}

	_, choice, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("阈值选择失败: %w", err)
	}

	switch choice {
	case thresholdStrict:
		return 90, nil
	case thresholdHigh:
		return 70, nil
	case thresholdMedium:
		return 50, nil
	case thresholdAll:
		return 0, nil
	case thresholdQuitOpt:
		return -1, nil
	case thresholdCustom:
		return promptCustomThreshold()
	}
	return 0, nil
}

func promptCustomThreshold() (float64, error) {
	prompt := promptui.Prompt{
		Label: "输入阈值 (0-100)",
		Validate: func(input string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
			if err != nil {
				return fmt.Errorf("必须是数字")
			}
			if v < 0 || v > 100 {
				return fmt.Errorf("必须在[0,100]范围内")
			}
			return nil
		},
	}
	raw, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("阈值输入失败: %w", err)
	}
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

// printChunkReports 打印分块级失败告警
func printChunkReports(reports []types.ChunkReport) {
	for _, report := range reports {
		if report.Failed() {
			fmt.Fprintf(os.Stderr, "警告: 描述分块 %d 检索失败: %v\n", report.ChunkIndex, report.Err)
		}
	}
}

// printResults 以表格输出排名结果
func printResults(results []types.ScoredCandidate, threshold float64) {
	if len(results) == 0 {
		fmt.Printf("没有匹配度达到 %.0f%% 的候选人。\n", threshold)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "排名\t姓名\t邮箱\t匹配度\t命中技能")
	for i, cand := range results {
		name := cand.Name
		if name == "" {
			name = "(未知)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f%%\t%s\n",
			i+1, name, cand.Email, cand.MatchPercent, strings.Join(cand.MatchedSkills, ", "))
	}
	w.Flush()
	fmt.Printf("共 %d 位候选人 (阈值 %.0f%%)\n", len(results), threshold)
}
