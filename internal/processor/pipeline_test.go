package processor

import (
	"context"
	"testing"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTextExtractor struct {
	out   string
	calls int
}

func (m *mockTextExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, error) {
	m.calls++
	return m.out, nil
}

func newTestPipeline(pdf TextExtractor) *IngestPipeline {
	return NewIngestPipeline(&storage.Storage{}, pdf, nil, nil, &config.RabbitMQConfig{})
}

func TestHandleMessageDropsMalformedJSON(t *testing.T) {
	p := newTestPipeline(&mockTextExtractor{})

	// 坏消息必须ack丢弃，否则会无限重试
	assert.True(t, p.handleMessage(context.Background(), []byte("{not json")))
}

func TestHandleMessageDropsMissingObjectKey(t *testing.T) {
	p := newTestPipeline(&mockTextExtractor{})

	assert.True(t, p.handleMessage(context.Background(), []byte(`{"original_filename":"a.pdf"}`)))
}

func TestExtractTextRoutesByExtension(t *testing.T) {
	pdf := &mockTextExtractor{out: "parsed pdf text"}
	p := newTestPipeline(pdf)

	text, err := p.extractText(context.Background(), &storage.ResumeUploadedMessage{
		ObjectKey:        "resume/x/original.pdf",
		OriginalFilename: "简历.PDF",
	}, []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "parsed pdf text", text)
	assert.Equal(t, 1, pdf.calls)

	// 非PDF按纯文本处理，不经过提取器
	text, err = p.extractText(context.Background(), &storage.ResumeUploadedMessage{
		ObjectKey:        "resume/y/original.txt",
		OriginalFilename: "resume.txt",
	}, []byte("plain resume text"))
	require.NoError(t, err)
	assert.Equal(t, "plain resume text", text)
	assert.Equal(t, 1, pdf.calls)
}

func TestIsPermanentFailure(t *testing.T) {
	assert.True(t, isPermanentFailure(newIngestError("", "extract", ErrInvalidRecord, "乱码")))
	assert.True(t, isPermanentFailure(newIngestError("r1", "dedupe", ErrDuplicateResume, "相同原文已入库")))
	assert.False(t, isPermanentFailure(newIngestError("r1", "commit", ErrStorageFailure, "连接中断")))
}
