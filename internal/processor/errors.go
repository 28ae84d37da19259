package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidRecord    = errors.New("简历记录无效")
	ErrStorageFailure   = errors.New("存储操作失败")
	ErrAllChunksFailed  = errors.New("所有描述分块检索失败")
	ErrDuplicateResume  = errors.New("重复的简历文件")
	ErrEmptyDescription = errors.New("岗位描述为空")
)

// ChunkRetrievalError 单个描述分块的检索失败
// 排名流程对这类错误做局部吸收，只影响该分块的候选覆盖。
type ChunkRetrievalError struct {
	ChunkIndex int
	Op         string
	BaseErr    error
	Detail     string
}

func (e *ChunkRetrievalError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("描述分块 %d 检索失败 (操作:%s): %s: %v", e.ChunkIndex, e.Op, e.Detail, e.BaseErr)
	}
	return fmt.Sprintf("描述分块 %d 检索失败 (操作:%s): %v", e.ChunkIndex, e.Op, e.BaseErr)
}

func (e *ChunkRetrievalError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ChunkRetrievalError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// IngestError 入库某一步骤的失败，带简历ID便于排查
type IngestError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *IngestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (操作:%s, 简历:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%v (操作:%s, 简历:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *IngestError) Unwrap() error {
	return e.BaseErr
}

func (e *IngestError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func newIngestError(resumeID, op string, base error, detail string) error {
	return &IngestError{
		ResumeID: resumeID,
		Op:       op,
		BaseErr:  base,
		Detail:   detail,
	}
}

func newChunkError(chunkIndex int, op string, base error, detail string) error {
	return &ChunkRetrievalError{
		ChunkIndex: chunkIndex,
		Op:         op,
		BaseErr:    base,
		Detail:     detail,
	}
}
