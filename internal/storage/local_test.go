package storage

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewLocalStorage(dir, "http://localhost:8080/")
	require.NoError(t, err)

	key := "anonymous/12345678.txt"
	err = p.Upload(ctx, bytes.NewBufferString("hello world"), key, "text/plain")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "anonymous", "12345678.txt"))
	require.NoError(t, err)

	exists, err := p.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rec := httptest.NewRecorder()
	require.NoError(t, p.Stream(ctx, key, rec))
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))

	assert.Equal(t, "http://localhost:8080/f/anonymous/12345678.txt", p.GetURL(key))

	require.NoError(t, p.Delete(ctx, key))
	exists, err = p.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, p.Delete(ctx, key), ErrNotFound)
	assert.ErrorIs(t, p.Stream(ctx, key, httptest.NewRecorder()), ErrNotFound)
}

func TestLocalStorage_SniffsUnknownExtension(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalStorage(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	require.NoError(t, p.Upload(ctx, bytes.NewReader(png), "u/1700000000000", "image/png"))

	rec := httptest.NewRecorder()
	require.NoError(t, p.Stream(ctx, "u/1700000000000", rec))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalStorage(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	for _, key := range []string{"../escape.txt", "a/../../escape.txt", "", "a//b"} {
		err := p.Upload(ctx, bytes.NewBufferString("x"), key, "text/plain")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "anonymous/12345678.png", want: "anonymous/12345678.png"},
		{key: "/user/1.pdf", want: "user/1.pdf"},
		{key: "..", wantErr: true},
		{key: "../x", wantErr: true},
		{key: "a/./b", wantErr: true},
		{key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStorage_UploadNeverReplaces(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	key := "anonymous/55556666.txt"
	require.NoError(t, p.Upload(ctx, bytes.NewBufferString("first"), key, "text/plain"))

	err = p.Upload(ctx, bytes.NewBufferString("second"), key, "text/plain")
	assert.ErrorIs(t, err, ErrExists)

	rec := httptest.NewRecorder()
	require.NoError(t, p.Stream(ctx, key, rec))
	assert.Equal(t, "first", rec.Body.String())

	// A deleted key can be written again
	require.NoError(t, p.Delete(ctx, key))
	require.NoError(t, p.Upload(ctx, bytes.NewBufferString("third"), key, "text/plain"))
}
