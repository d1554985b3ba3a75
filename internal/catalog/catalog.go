// Package catalog holds the ordered narration segments of a completed job and
// the audio handle addressing each one.
package catalog

import (
	"errors"
	"fmt"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/samber/lo"
)

// PreloadMetadata asks the media layer to fetch only headers and duration
// until the handle is played.
const PreloadMetadata = "metadata"

var (
	// ErrEmpty is returned when a terminal result carries no segments.
	ErrEmpty = errors.New("segment list is empty")
	// ErrInvalidPage is returned for a segment whose page is below 1.
	ErrInvalidPage = errors.New("segment page must be at least 1")
)

// AddressFunc builds the audio address for one segment of a job.
type AddressFunc func(jobID string, index int) string

// Handle is the playable resource bound to one segment. Constructing it does
// not touch the network.
type Handle struct {
	Index   int
	URL     string
	Preload string
}

// Catalog is an immutable, ordered batch of segments with one handle each.
type Catalog struct {
	jobID      string
	segments   []backend.Segment
	handles    []*Handle
	totalPages int
}

// Populate validates segments and builds a handle per index.
func Populate(jobID string, segments []backend.Segment, address AddressFunc) (*Catalog, error) {
	if len(segments) == 0 {
		return nil, ErrEmpty
	}
	for i, s := range segments {
		if s.Page < 1 {
			return nil, fmt.Errorf("segment %d: %w (got %d)", i, ErrInvalidPage, s.Page)
		}
	}

	c := &Catalog{
		jobID:    jobID,
		segments: append([]backend.Segment(nil), segments...),
		handles:  make([]*Handle, len(segments)),
	}
	for i := range c.segments {
		c.handles[i] = &Handle{
			Index:   i,
			URL:     address(jobID, i),
			Preload: PreloadMetadata,
		}
	}
	return c, nil
}

// WithTotalPages records the page count the backend reported for the source
// document.
func (c *Catalog) WithTotalPages(n int) *Catalog {
	c.totalPages = n
	return c
}

// JobID returns the job the segments belong to.
func (c *Catalog) JobID() string {
	return c.jobID
}

// Len returns the number of segments.
func (c *Catalog) Len() int {
	return len(c.segments)
}

// Segment returns the segment at index i.
func (c *Catalog) Segment(i int) (backend.Segment, bool) {
	if i < 0 || i >= len(c.segments) {
		return backend.Segment{}, false
	}
	return c.segments[i], true
}

// Handle returns the handle at index i. Repeated calls return the same handle.
func (c *Catalog) Handle(i int) (*Handle, bool) {
	if i < 0 || i >= len(c.handles) {
		return nil, false
	}
	return c.handles[i], true
}

// Handles returns the handles in playback order.
func (c *Catalog) Handles() []*Handle {
	return append([]*Handle(nil), c.handles...)
}

// MaxPage returns the highest page number referenced by any segment.
func (c *Catalog) MaxPage() int {
	return lo.MaxBy(c.segments, func(a, b backend.Segment) bool {
		return a.Page > b.Page
	}).Page
}

// TotalPages returns the backend's page count, falling back to MaxPage.
func (c *Catalog) TotalPages() int {
	if c.totalPages > 0 {
		return c.totalPages
	}
	return c.MaxPage()
}

// Last returns the final index.
func (c *Catalog) Last() int {
	return len(c.segments) - 1
}
