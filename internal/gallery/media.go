// Package gallery stores uploaded media on the local filesystem, one
// directory per owner, and extracts the capture timestamp embedded in photo
// uploads.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedMedia indicates a filename whose extension is not in the
	// configured allow-list.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrMediaExists indicates the owner already has a file under that name.
	ErrMediaExists = errors.New("media already exists")
	// ErrMediaNotExist indicates no stored file matches the request.
	ErrMediaNotExist = errors.New("media does not exist")
)

// DefaultChunkSize bounds the buffer used for streaming copies in both
// directions.
const DefaultChunkSize = 100 * 1024

// DefaultExtensions maps the allowed 3-character filename extensions to the
// MIME types served back on download.
func DefaultExtensions() map[string]string {
	return map[string]string{
		"jpg": "image/jpeg",
		"mp4": "video/mp4",
	}
}

// Store persists media blobs under BaseDir/<owner>/<filename>.
type Store struct {
	baseDir    string
	chunkSize  int
	extensions map[string]string
}

// Config controls a media Store.
type Config struct {
	BaseDir    string
	ChunkSize  int
	Extensions map[string]string
}

// NewStore builds a media store rooted at cfg.BaseDir, creating it when
// missing.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("media base dir required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions()
	}
	dir := filepath.Clean(cfg.BaseDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{baseDir: dir, chunkSize: cfg.ChunkSize, extensions: cfg.Extensions}, nil
}

// ChunkSize reports the streaming buffer size in use.
func (s *Store) ChunkSize() int { return s.chunkSize }

// AllowedContentTypes lists the MIME types accepted for uploads.
func (s *Store) AllowedContentTypes() map[string]struct{} {
	allowed := make(map[string]struct{}, len(s.extensions))
	for _, mime := range s.extensions {
		allowed[mime] = struct{}{}
	}
	return allowed
}

// ContentType resolves the MIME type for the filename's extension.
func (s *Store) ContentType(filename string) (string, bool) {
	ext, ok := extensionOf(filename)
	if !ok {
		return "", false
	}
	mime, ok := s.extensions[ext]
	return mime, ok
}

func extensionOf(filename string) (string, bool) {
	if len(filename) < 4 {
		return "", false
	}
	return strings.ToLower(filename[len(filename)-3:]), true
}

func (s *Store) validateName(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return ErrUnsupportedMedia
	}
	ext, ok := extensionOf(filename)
	if !ok {
		return ErrUnsupportedMedia
	}
	if _, ok := s.extensions[ext]; !ok {
		return ErrUnsupportedMedia
	}
	return nil
}

func (s *Store) ownerDir(owner string) string {
	return filepath.Join(s.baseDir, strings.ToLower(strings.TrimSpace(owner)))
}

// Staged is a fully received upload waiting to be published into the owner's
// namespace. The caller must end a Staged with either Publish or Discard.
type Staged struct {
	store    *Store
	tempPath string
	final    string
	size     int64
}

// Stage validates the filename and streams the request body into a temporary
// file next to its final location. The extension and duplicate checks run
// before any byte is persisted; on a duplicate the body is drained to
// completion so the connection stays usable, then ErrMediaExists is returned.
func (s *Store) Stage(owner, filename string, body io.Reader) (*Staged, error) {
	if err := s.validateName(filename); err != nil {
		drain(body, s.chunkSize)
		return nil, err
	}

	dir := s.ownerDir(owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create owner dir: %w", err)
	}

	final := filepath.Join(dir, filename)
	if _, err := os.Lstat(final); err == nil {
		drain(body, s.chunkSize)
		return nil, ErrMediaExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat media: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "staged-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	written, err := io.CopyBuffer(tmp, body, make([]byte, s.chunkSize))
	closeErr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("receive media: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("close staging file: %w", closeErr)
	}

	return &Staged{store: s, tempPath: tmp.Name(), final: final, size: written}, nil
}

// Path exposes the staged bytes for metadata extraction.
func (st *Staged) Path() string { return st.tempPath }

// Size reports how many bytes were received.
func (st *Staged) Size() int64 { return st.size }

// Publish atomically moves the staged file into its final name. Link fails
// with EEXIST when a concurrent upload won the race, so two writers can both
// pass the Stage existence check and still only one publish succeeds.
func (st *Staged) Publish() error {
	if st.tempPath == "" {
		return fmt.Errorf("staged media already finished")
	}
	if err := os.Link(st.tempPath, st.final); err != nil {
		if errors.Is(err, os.ErrExist) {
			st.Discard()
			return ErrMediaExists
		}
		return fmt.Errorf("publish media: %w", err)
	}
	_ = os.Remove(st.tempPath)
	st.tempPath = ""
	return nil
}

// Discard removes the staged bytes without publishing them.
func (st *Staged) Discard() {
	if st.tempPath == "" {
		return
	}
	_ = os.Remove(st.tempPath)
	st.tempPath = ""
}

// Remove deletes a published file. It is the compensating action when the
// feed ledger append fails after publish.
func (s *Store) Remove(owner, filename string) error {
	if err := s.validateName(filename); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.ownerDir(owner), filename))
}

// Open returns the stored file and its MIME type for download streaming.
func (s *Store) Open(owner, filename string) (*os.File, string, error) {
	if err := s.validateName(filename); err != nil {
		return nil, "", err
	}
	mime, _ := s.ContentType(filename)
	file, err := os.Open(filepath.Join(s.ownerDir(owner), filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrMediaNotExist
	} else if err != nil {
		return nil, "", fmt.Errorf("open media: %w", err)
	}
	return file, mime, nil
}

// drain consumes the remainder of an upload body so the connection is left in
// a consistent state before an error response is written.
func drain(body io.Reader, chunkSize int) {
	if body == nil {
		return
	}
	_, _ = io.CopyBuffer(io.Discard, body, make([]byte, chunkSize))
}
