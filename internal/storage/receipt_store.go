package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ReceiptStore persists uploaded receipt files and returns a stored file
// name plus a publicly resolvable URL. Binary storage mechanics stay behind
// this boundary; the rest of the system only keeps the returned reference.
type ReceiptStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (fileName, publicURL string, err error)
}

type diskReceiptStore struct {
	dir     string
	baseURL string
}

// NewDiskReceiptStore stores receipts under dir and serves them from baseURL.
func NewDiskReceiptStore(dir, baseURL string) (ReceiptStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &diskReceiptStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *diskReceiptStore) Save(_ context.Context, originalName string, r io.Reader) (string, string, error) {
	ext := filepath.Ext(originalName)
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", "", err
	}
	return name, s.baseURL + "/" + name, nil
}
