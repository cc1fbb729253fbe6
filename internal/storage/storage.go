package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of the upload mimetype needs to identify it.
const sniffLen = 3072

// acceptedTypes lists, per extension, the content types the sniffed bytes
// may resolve to (or descend from).
var acceptedTypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"doc":  {"application/msword", "application/x-ole-storage"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
}

// FileStorage keeps justification documents and hands back opaque tokens.
type FileStorage interface {
	Store(ctx context.Context, originalName string, r io.Reader) (*StoredFile, error)
	Open(ctx context.Context, token string) (io.ReadCloser, *StoredFile, error)
	Delete(ctx context.Context, token string) error
}

type StoredFile struct {
	Token        string `json:"token"`
	OriginalName string `json:"original_name,omitempty"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// LocalStorage writes files under one directory, named <uuid>.<ext>.
type LocalStorage struct {
	dir     string
	maxSize int64
	allowed map[string]bool
	logger  *slog.Logger
}

func NewLocalStorage(cfg internal.StorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", cfg.UploadDir, err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = true
	}

	return &LocalStorage{
		dir:     cfg.UploadDir,
		maxSize: cfg.MaxSizeBytes,
		allowed: allowed,
		logger:  logger,
	}, nil
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func (s *LocalStorage) Store(_ context.Context, originalName string, r io.Reader) (*StoredFile, error) {
	ext := extensionOf(originalName)
	if ext == "" {
		return nil, internal.ErrFileRejected.WithMessage("File must have an extension")
	}
	if !s.allowed[ext] {
		return nil, internal.ErrFileRejected.WithMessage("Extension .%s is not accepted", ext)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, internal.ErrFileRejected.WithMessage("File is empty")
	}

	mtype := mimetype.Detect(head)
	if !matches(mtype, acceptedTypes[ext]) {
		s.logger.Warn("upload content does not match extension", "extension", ext, "detected", mtype.String())
		return nil, internal.ErrFileRejected.WithMessage("Content of type %s does not match .%s", mtype.String(), ext)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write upload: %w", closeErr)
	}
	if written > s.maxSize {
		return nil, internal.ErrFileRejected.WithMessage("File exceeds the maximum size of %d bytes", s.maxSize)
	}

	token := uuid.NewString() + "." + ext
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, token)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info("file stored", "token", token, "size", written, "content_type", mtype.String())
	return &StoredFile{
		Token:        token,
		OriginalName: filepath.Base(originalName),
		ContentType:  mtype.String(),
		Size:         written,
	}, nil
}

func matches(mtype *mimetype.MIME, accepted []string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		for _, want := range accepted {
			if m.Is(want) {
				return true
			}
		}
	}
	return false
}

// path resolves a token to a file inside the storage directory. Anything
// that is not <uuid>.<ext> is refused.
func (s *LocalStorage) path(token string) (string, error) {
	base, ext, ok := strings.Cut(token, ".")
	if !ok || ext == "" || strings.ContainsAny(ext, `/\.`) {
		return "", internal.ErrFileNotFound
	}
	if _, err := uuid.Parse(base); err != nil {
		return "", internal.ErrFileNotFound
	}
	return filepath.Join(s.dir, token), nil
}

func (s *LocalStorage) Open(_ context.Context, token string) (io.ReadCloser, *StoredFile, error) {
	p, err := s.path(token)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, internal.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", token, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", token, err)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(p); err == nil {
		contentType = m.String()
	}
	return f, &StoredFile{Token: token, ContentType: contentType, Size: info.Size()}, nil
}

// Load returns the whole file.
func (s *LocalStorage) Load(ctx context.Context, token string) ([]byte, error) {
	rc, _, err := s.Open(ctx, token)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *LocalStorage) Delete(_ context.Context, token string) error {
	p, err := s.path(token)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", token, err)
	}
	return nil
}
