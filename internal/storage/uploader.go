package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"whatsjuju-chat/backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxSize is the largest accepted upload
const DefaultMaxSize int64 = 10 << 20

// ErrInvalidUpload wraps every rejection the client can fix
var ErrInvalidUpload = errors.New("invalid upload")

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	fileTypes  = []string{
		"application/pdf",
		"text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
		"application/x-rar-compressed",
	}
)

// File is an incoming upload. MimeType is the type declared by the client.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Uploader stores media attached to messages
type Uploader interface {
	Validate(kind models.MessageKind, mimeType string, size int64) error
	Store(ctx context.Context, f File, kind models.MessageKind) (models.FileMeta, error)
	Remove(meta models.FileMeta) error
}

// LocalUploader writes uploads below a root directory as
// <root>/{images|files}/<uuid>_<unix>.<ext>. FileMeta.FilePath is relative to
// the parent of root so it can be served as a URL path.
type LocalUploader struct {
	root    string
	maxSize int64
	now     func() time.Time
}

// NewLocalUploader creates an uploader. maxSize <= 0 uses DefaultMaxSize.
func NewLocalUploader(root string, maxSize int64) *LocalUploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &LocalUploader{root: root, maxSize: maxSize, now: time.Now}
}

// Root is the directory uploads are written below
func (u *LocalUploader) Root() string {
	return u.root
}

func baseType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func allowed(kind models.MessageKind, mimeType string) bool {
	mt := baseType(mimeType)
	for _, t := range imageTypes {
		if t == mt {
			return true
		}
	}
	if kind != models.KindFile {
		return false
	}
	for _, t := range fileTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// Validate checks the kind, the declared type and the size
func (u *LocalUploader) Validate(kind models.MessageKind, mimeType string, size int64) error {
	if !kind.Media() {
		return fmt.Errorf("%w: Dados obrigatórios não fornecidos", ErrInvalidUpload)
	}
	if !allowed(kind, mimeType) {
		return fmt.Errorf("%w: Tipo de arquivo não permitido", ErrInvalidUpload)
	}
	if size <= 0 {
		return fmt.Errorf("%w: Nenhum arquivo enviado ou erro no upload", ErrInvalidUpload)
	}
	if size > u.maxSize {
		return fmt.Errorf("%w: Arquivo muito grande. Máximo %dMB", ErrInvalidUpload, u.maxSize>>20)
	}
	return nil
}

func subdir(kind models.MessageKind) string {
	if kind == models.KindImage {
		return "images"
	}
	return "files"
}

// Store validates and writes f. Images must also sniff as an allowed image
// type whatever the client declared.
func (u *LocalUploader) Store(ctx context.Context, f File, kind models.MessageKind) (models.FileMeta, error) {
	if err := u.Validate(kind, f.MimeType, f.Size); err != nil {
		return models.FileMeta{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.FileMeta{}, err
	}

	br := bufio.NewReaderSize(f.Content, 3072)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return models.FileMeta{}, fmt.Errorf("storage: read upload: %w", err)
	}
	if kind == models.KindImage {
		sniffed := mimetype.Detect(head)
		if !allowed(models.KindImage, sniffed.String()) {
			return models.FileMeta{}, fmt.Errorf("%w: Tipo de arquivo não permitido", ErrInvalidUpload)
		}
	}

	dir := filepath.Join(u.root, subdir(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: create dir: %w", err)
	}

	unique := fmt.Sprintf("%s_%d%s", uuid.NewString(), u.now().Unix(), strings.ToLower(filepath.Ext(f.Name)))
	dst := filepath.Join(dir, unique)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: create file: %w", err)
	}

	// one byte past the limit detects a Size that understated the content
	written, err := io.Copy(out, io.LimitReader(br, u.maxSize+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > u.maxSize {
		err = fmt.Errorf("%w: Arquivo muito grande. Máximo %dMB", ErrInvalidUpload, u.maxSize>>20)
	}
	if err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, ErrInvalidUpload) {
			return models.FileMeta{}, err
		}
		return models.FileMeta{}, fmt.Errorf("storage: write file: %w", err)
	}

	return models.FileMeta{
		FileName: filepath.Base(f.Name),
		FilePath: path.Join(filepath.Base(u.root), subdir(kind), unique),
		FileSize: written,
		MimeType: baseType(f.MimeType),
	}, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (u *LocalUploader) Remove(meta models.FileMeta) error {
	rel := strings.TrimPrefix(meta.FilePath, filepath.Base(u.root)+"/")
	target := filepath.Join(u.root, filepath.FromSlash(rel))

	// refuse anything that escapes the upload root
	if r, err := filepath.Rel(u.root, target); err != nil || strings.HasPrefix(r, "..") {
		return fmt.Errorf("storage: path outside upload root: %s", meta.FilePath)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}
