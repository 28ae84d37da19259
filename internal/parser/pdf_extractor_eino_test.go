package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)
	require.NotNil(t, extractor)
}

func TestEinoExtractFromFileMissing(t *testing.T) {
	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)

	_, err = extractor.ExtractFromFile(context.Background(), filepath.Join(t.TempDir(), "不存在.pdf"))
	require.Error(t, err)
}

func TestEinoExtractFromBytesInvalidPDF(t *testing.T) {
	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)

	_, err = extractor.ExtractFromBytes(context.Background(), []byte("这不是PDF内容"), "bad.pdf")
	require.Error(t, err)
}
