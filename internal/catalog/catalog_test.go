package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
)

func testAddress(jobID string, index int) string {
	return fmt.Sprintf("http://backend/api/audio/%s/%d", jobID, index)
}

func TestPopulate(t *testing.T) {
	segs := []backend.Segment{
		{Text: "Abstract", Page: 1},
		{Text: "Method", Page: 4, HasFigureReference: true, FigureReferences: []string{"Figure 1"}},
		{Text: "Results", Page: 3},
	}

	c, err := Populate("job-1", segs, testAddress)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	for i, h := range c.Handles() {
		if h.Index != i {
			t.Errorf("handle %d index = %d", i, h.Index)
		}
		if h.URL != testAddress("job-1", i) {
			t.Errorf("handle %d url = %q", i, h.URL)
		}
		if h.Preload != PreloadMetadata {
			t.Errorf("handle %d preload = %q", i, h.Preload)
		}
	}
	if c.MaxPage() != 4 {
		t.Errorf("maxPage = %d, want 4", c.MaxPage())
	}
	if c.Last() != 2 {
		t.Errorf("last = %d, want 2", c.Last())
	}
	if s, _ := c.Segment(1); s.FigureReferences[0] != "Figure 1" {
		t.Errorf("segment 1 = %+v", s)
	}
}

func TestPopulatePreservesOrder(t *testing.T) {
	segs := []backend.Segment{{Text: "c", Page: 9}, {Text: "a", Page: 1}, {Text: "b", Page: 5}}
	c, err := Populate("job", segs, testAddress)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	for i, want := range []string{"c", "a", "b"} {
		if s, _ := c.Segment(i); s.Text != want {
			t.Errorf("segment %d = %q, want %q", i, s.Text, want)
		}
	}
}

func TestPopulateRejectsEmpty(t *testing.T) {
	if _, err := Populate("job", nil, testAddress); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestPopulateRejectsInvalidPage(t *testing.T) {
	segs := []backend.Segment{{Text: "ok", Page: 1}, {Text: "bad", Page: 0}}
	if _, err := Populate("job", segs, testAddress); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("err = %v, want ErrInvalidPage", err)
	}
}

func TestHandleIsIdempotent(t *testing.T) {
	c, _ := Populate("job", []backend.Segment{{Page: 1}, {Page: 2}}, testAddress)
	a, _ := c.Handle(1)
	b, _ := c.Handle(1)
	if a != b {
		t.Error("handle lookup created a second handle for the same index")
	}
	if _, ok := c.Handle(2); ok {
		t.Error("out of range index should not resolve")
	}
}

func TestPopulateCopiesInput(t *testing.T) {
	segs := []backend.Segment{{Text: "original", Page: 1}}
	c, _ := Populate("job", segs, testAddress)
	segs[0].Text = "mutated"
	if s, _ := c.Segment(0); s.Text != "original" {
		t.Error("catalog shares the caller's slice")
	}
}

func TestTotalPagesFallsBackToMaxPage(t *testing.T) {
	c, _ := Populate("job", []backend.Segment{{Page: 2}, {Page: 7}}, testAddress)
	if c.TotalPages() != 7 {
		t.Errorf("totalPages = %d, want 7", c.TotalPages())
	}
	if c.WithTotalPages(12).TotalPages() != 12 {
		t.Errorf("totalPages = %d, want 12", c.TotalPages())
	}
}
