// Package document manages the source PDF for a session: the MIME check on
// upload, local object URLs with explicit create and revoke, and handing the
// file to the platform's document viewer.
package document

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/wailsapp/mimetype"
)

const (
	// PDFMIME is the only accepted document type.
	PDFMIME = "application/pdf"

	urlScheme = "blob:"
)

var (
	// ErrNotPDF is returned when a file's content is not a PDF.
	ErrNotPDF = errors.New("document is not a PDF")
	// ErrRevoked is returned when an object URL is unknown or already revoked.
	ErrRevoked = errors.New("object URL has been revoked")
)

// Info describes a checked document.
type Info struct {
	Path string
	Name string
	Size int64
	MIME string
}

// CheckPDF sniffs the file content and rejects anything but a PDF.
func CheckPDF(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat document: %w", err)
	}
	if st.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory: %w", path, ErrNotPDF)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("detect document type: %w", err)
	}
	if !mt.Is(PDFMIME) {
		return Info{}, fmt.Errorf("%s is %s: %w", filepath.Base(path), mt.String(), ErrNotPDF)
	}

	return Info{
		Path: path,
		Name: filepath.Base(path),
		Size: st.Size(),
		MIME: mt.String(),
	}, nil
}

// Registry hands out object URLs for local documents. Each URL is backed by a
// private copy of the file that lives until the URL is revoked.
type Registry struct {
	dir string

	mu      sync.Mutex
	entries map[string]string
}

// NewRegistry creates a registry that keeps its copies under dir, or under the
// OS temp dir if dir is empty.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, entries: make(map[string]string)}
}

// Create copies the document and returns a new object URL for it.
func (r *Registry) Create(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = src.Close() }()

	id := uuid.NewString()
	dst, err := os.CreateTemp(r.dir, "paper-reader-"+id+"-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("create object copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("copy document: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close object copy: %w", err)
	}

	url := urlScheme + id
	r.mu.Lock()
	r.entries[url] = dst.Name()
	r.mu.Unlock()

	slog.Debug("object URL created", "url", url, "document", filepath.Base(path))
	return url, nil
}

// Resolve returns the local file behind a live object URL.
func (r *Registry) Resolve(url string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[url]
	return p, ok
}

// Revoke deletes the copy behind url. It reports true only for the call that
// actually revoked it.
func (r *Registry) Revoke(url string) bool {
	r.mu.Lock()
	p, ok := r.entries[url]
	delete(r.entries, url)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove object copy failed", "url", url, "err", err)
	}
	slog.Debug("object URL revoked", "url", url)
	return true
}

// RevokeAll revokes every live URL and returns how many there were.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	urls := make([]string, 0, len(r.entries))
	for url := range r.entries {
		urls = append(urls, url)
	}
	r.mu.Unlock()

	n := 0
	for _, url := range urls {
		if r.Revoke(url) {
			n++
		}
	}
	return n
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsObjectURL reports whether s looks like a URL from a Registry.
func IsObjectURL(s string) bool {
	return strings.HasPrefix(s, urlScheme)
}

// Viewer opens object URLs in the platform's default document viewer.
type Viewer struct {
	registry *Registry
	open     func(path string) error
}

// NewViewer creates a viewer that resolves URLs through registry.
func NewViewer(registry *Registry) *Viewer {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &Viewer{registry: registry, open: browser.OpenFile}
}

// Open shows the document behind url.
func (v *Viewer) Open(url string) error {
	p, ok := v.registry.Resolve(url)
	if !ok {
		return ErrRevoked
	}
	if err := v.open(p); err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}
	return nil
}
