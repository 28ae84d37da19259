package parser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTikaPDFExtractorRequiresURL(t *testing.T) {
	_, err := NewTikaPDFExtractor("")
	require.Error(t, err)

	_, err = NewTikaPDFExtractor("   ")
	require.Error(t, err)
}

func TestTikaExtractFromBytes(t *testing.T) {
	var gotPath, gotAccept string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte("张三 Golang后端工程师\n"))
	}))
	defer server.Close()

	// 尾部斜杠应被归一化
	extractor, err := NewTikaPDFExtractor(server.URL + "/")
	require.NoError(t, err)

	text, err := extractor.ExtractFromBytes(context.Background(), []byte("%PDF-1.4 fake"), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "张三 Golang后端工程师\n", text)
	assert.Equal(t, "/tika", gotPath)
	assert.Equal(t, "text/plain", gotAccept)
	assert.Equal(t, []byte("%PDF-1.4 fake"), gotBody)
}

func TestTikaExtractFromBytesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("Unsupported media type"))
	}))
	defer server.Close()

	extractor, err := NewTikaPDFExtractor(server.URL)
	require.NoError(t, err)

	_, err = extractor.ExtractFromBytes(context.Background(), []byte("garbage"), "bad.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported media type")
}

func TestTikaExtractFromFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o644))

	extractor, err := NewTikaPDFExtractor(server.URL)
	require.NoError(t, err)

	text, err := extractor.ExtractFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file content", text)

	_, err = extractor.ExtractFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}
