package formats

import (
	"errors"
	"testing"
)

func TestRouteUnknownFormat(t *testing.T) {
	_, err := Route("xlsx-to-moon", Payload{Buffer: []byte("x")})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestRouteSingleBuffer(t *testing.T) {
	d, err := Route(FormatWord, Payload{Buffer: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("route word: %v", err)
	}
	if d.Shape != ShapeSingle || d.Family != FamilyDocument {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestRouteSingleRejectsEmptyBuffer(t *testing.T) {
	_, err := Route(FormatWord, Payload{})
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
}

func TestRouteMergeRequiresParallelNames(t *testing.T) {
	buffers := [][]byte{[]byte("a"), []byte("b")}

	if _, err := Route(FormatMerge, Payload{Buffers: buffers, Names: []string{"a.pdf"}}); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for mismatched names, got %v", err)
	}
	if _, err := Route(FormatMerge, Payload{Buffers: buffers[:1], Names: []string{"a.pdf"}}); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for single buffer, got %v", err)
	}

	d, err := Route(FormatMerge, Payload{Buffers: buffers, Names: []string{"a.pdf", "b.pdf"}})
	if err != nil {
		t.Fatalf("route merge: %v", err)
	}
	if d.Shape != ShapeMultiNamed {
		t.Fatalf("unexpected shape: %v", d.Shape)
	}
}

func TestRouteSplitValidatesRanges(t *testing.T) {
	buf := []byte("%PDF-1.4")

	if _, err := Route(FormatSplit, Payload{Buffer: buf}); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for missing ranges, got %v", err)
	}
	if _, err := Route(FormatSplit, Payload{Buffer: buf, Ranges: []PageRange{{Start: 5, End: 2}}}); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for inverted range, got %v", err)
	}
	if _, err := Route(FormatSplit, Payload{Buffer: buf, Ranges: []PageRange{{Start: 0, End: 3}}}); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for zero start, got %v", err)
	}

	d, err := Route(FormatSplit, Payload{Buffer: buf, Ranges: []PageRange{{Start: 1, End: 5}, {Start: 6, End: 10}}})
	if err != nil {
		t.Fatalf("route split: %v", err)
	}
	if d.Shape != ShapeRanges {
		t.Fatalf("unexpected shape: %v", d.Shape)
	}
}

func TestRouteOptionsMayBeNil(t *testing.T) {
	d, err := Route(FormatCompress, Payload{Buffer: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("route compress without options: %v", err)
	}
	if d.Shape != ShapeOptions {
		t.Fatalf("unexpected shape: %v", d.Shape)
	}
}

func TestExtMap(t *testing.T) {
	cases := map[Format]string{
		FormatWord:     ".docx",
		FormatExcel:    ".xlsx",
		FormatPng:      ".zip",
		FormatMerge:    ".pdf",
		FormatSplit:    ".zip",
		FormatPngToJpg: ".jpg",
		FormatGif:      ".gif",
	}
	for f, want := range cases {
		if got := Ext(f); got != want {
			t.Errorf("Ext(%s) = %q, want %q", f, got, want)
		}
	}
	if got := Ext("nope"); got != "" {
		t.Errorf("Ext(unknown) = %q, want empty", got)
	}
}

func TestSupportedCoversEveryFamily(t *testing.T) {
	families := make(map[Family]bool)
	for f := range table {
		if !Supported(f) {
			t.Fatalf("table entry %s not reported as supported", f)
		}
		families[table[f].family] = true
	}
	for _, fam := range []Family{FamilyDocument, FamilyPDF, FamilyImage, FamilyAudio, FamilyVideo} {
		if !families[fam] {
			t.Fatalf("no format registered for family %d", fam)
		}
	}
}
