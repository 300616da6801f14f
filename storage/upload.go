package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize caps a single uploaded file.
const MaxFileSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("only jpeg, jpg, png, gif, webp and pdf files are allowed")
	ErrContentMismatch = errors.New("file content does not match its extension")
	ErrEmptyFile       = errors.New("file is empty")
	ErrTooLarge        = fmt.Errorf("file exceeds %d MB", MaxFileSize>>20)
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// ContentType returns the media type of an accepted upload, judged by the
// extension of name.
func ContentType(name string) (string, bool) {
	ct, ok := contentTypes[strings.ToLower(path.Ext(name))]
	return ct, ok
}

// sniffLen is how much of a file mimetype looks at by default.
const sniffLen = 3072

// CheckUpload verifies that filename has an accepted extension and that the
// content of r really is of that type. The returned reader replays the whole
// content and fails with ErrTooLarge past MaxFileSize.
func CheckUpload(filename string, r io.Reader) (io.Reader, error) {
	want, ok := ContentType(filename)
	if !ok {
		return nil, ErrUnsupportedType
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}
	if !mimetype.Detect(head).Is(want) {
		return nil, ErrContentMismatch
	}
	return &limitedReader{r: io.MultiReader(bytes.NewReader(head), r), left: MaxFileSize}, nil
}

type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	// one byte past the limit is enough to tell
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
