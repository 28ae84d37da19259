package storage

import "time"

// ResumeUploadedMessage 简历上传事件
// 上传命令写入MinIO成功后发布，ingest消费者据此拉取原始文件并入库。
type ResumeUploadedMessage struct {
	ObjectKey        string    `json:"object_key"`             // MinIO中的对象路径
	OriginalFilename string    `json:"original_filename"`      // 原始文件名
	RawFileMD5       string    `json:"raw_file_md5,omitempty"` // 原始文件MD5，用于去重和失败回滚
	UploadedAt       time.Time `json:"uploaded_at"`            // 上传时间
}
