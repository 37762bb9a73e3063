// Package uploads saves call attachments to local disk.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	models "broker-calls/database/models_pkg"

	"github.com/google/uuid"
)

// MaxRequestBytes caps a multipart request body
const MaxRequestBytes = 10 << 20

// URLPrefix is where saved files are served from
const URLPrefix = "/uploads/"

// Store writes uploaded files under a directory
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes one file under a fresh uuid name, keeping the original extension
func (s *Store) Save(fh *multipart.FileHeader) (models.Attachment, error) {
	src, err := fh.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	name := uuid.NewString() + ext

	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return models.Attachment{}, fmt.Errorf("write upload: %w", err)
	}

	return models.Attachment{Name: filepath.Base(fh.Filename), URL: URLPrefix + name}, nil
}

// SaveAll saves every file and stops at the first failure
func (s *Store) SaveAll(files []*multipart.FileHeader) ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(files))
	for _, fh := range files {
		a, err := s.Save(fh)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Handler serves saved files under URLPrefix. Files are always offered as
// downloads and never sniffed or rendered inline, since names keep the
// client's extension and share the API origin.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Disposition", "attachment")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
		files.ServeHTTP(w, r)
	})
}
