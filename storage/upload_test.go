package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngMagic = "\x89PNG\r\n\x1a\n"

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"bills/a.png", "image/png", true},
		{"bill.JPG", "image/jpeg", true},
		{"bill.jpeg", "image/jpeg", true},
		{"anim.gif", "image/gif", true},
		{"photo.webp", "image/webp", true},
		{"ticket.pdf", "application/pdf", true},
		{"page.html", "", false},
		{"logo.svg", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ContentType(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckUpload(t *testing.T) {
	t.Run("replays the whole file", func(t *testing.T) {
		content := pngMagic + strings.Repeat("x", 5000)
		r, err := CheckUpload("a.png", strings.NewReader(content))
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, content, string(got))
	})

	t.Run("exactly at the limit", func(t *testing.T) {
		content := pngMagic + strings.Repeat("x", MaxFileSize-len(pngMagic))
		r, err := CheckUpload("a.png", strings.NewReader(content))
		require.NoError(t, err)
		n, err := io.Copy(io.Discard, r)
		require.NoError(t, err)
		assert.Equal(t, int64(MaxFileSize), n)
	})

	t.Run("one byte over the limit", func(t *testing.T) {
		content := pngMagic + strings.Repeat("x", MaxFileSize-len(pngMagic)+1)
		r, err := CheckUpload("a.png", strings.NewReader(content))
		require.NoError(t, err)
		_, err = io.Copy(io.Discard, r)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := CheckUpload("page.html", strings.NewReader("<html></html>"))
		assert.ErrorIs(t, err, ErrUnsupportedType)
		_, err = CheckUpload("a.png", strings.NewReader("<html><script></script></html>"))
		assert.ErrorIs(t, err, ErrContentMismatch)
		_, err = CheckUpload("a.png", strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestLocalFileStore_SaveTooLargeLeavesNothing(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	r, err := CheckUpload("a.png", strings.NewReader(pngMagic+strings.Repeat("x", MaxFileSize)))
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "bills", "a.png", r)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(store.Root() + "/bills")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
