package formats

import (
	"errors"
	"fmt"
)

// Format identifies one supported conversion. The set is closed: anything
// not in the dispatch table below is rejected before any blob or worker
// interaction.
type Format string

const (
	// PDF -> Office / image archive
	FormatWord  Format = "word"
	FormatExcel Format = "excel"
	FormatPpt   Format = "ppt"
	FormatJpg   Format = "jpg"
	FormatPng   Format = "png"

	// Office -> PDF
	FormatWordToPdf  Format = "word2pdf"
	FormatExcelToPdf Format = "excel2pdf"
	FormatPptToPdf   Format = "ppt2pdf"

	// PDF utilities
	FormatMerge    Format = "merge"
	FormatSplit    Format = "split"
	FormatCompress Format = "compress"

	// Image family
	FormatJpgToPng      Format = "jpg-to-png"
	FormatPngToJpg      Format = "png-to-jpg"
	FormatJpgToWebp     Format = "jpg-to-webp"
	FormatPngToWebp     Format = "png-to-webp"
	FormatWebpToJpg     Format = "webp-to-jpg"
	FormatWebpToPng     Format = "webp-to-png"
	FormatHeicToJpg     Format = "heic-to-jpg"
	FormatHeicToPng     Format = "heic-to-png"
	FormatHeicToWebp    Format = "heic-to-webp"
	FormatResize        Format = "resize"
	FormatCompressImage Format = "compress-image"

	// Audio family
	FormatMp3 Format = "mp3"
	FormatWav Format = "wav"
	FormatOgg Format = "ogg"
	FormatM4a Format = "m4a"
	FormatAac Format = "aac"

	// Video family
	FormatMp4           Format = "mp4"
	FormatMov           Format = "mov"
	FormatWebm          Format = "webm"
	FormatMkv           Format = "mkv"
	FormatCompressVideo Format = "compress-video"
	FormatGif           Format = "gif"
)

// Shape declares the payload structure a format expects.
type Shape int

const (
	// ShapeSingle is one input buffer, no side data.
	ShapeSingle Shape = iota
	// ShapeMultiNamed is a buffer array with a parallel name list (merge).
	ShapeMultiNamed
	// ShapeRanges is one buffer plus a list of page ranges (split).
	ShapeRanges
	// ShapeOptions is one buffer plus a scalar/option object
	// (compress, resize, quality-bearing image conversions).
	ShapeOptions
)

// Family groups formats by the converter capability that serves them.
type Family int

const (
	FamilyDocument Family = iota
	FamilyPDF
	FamilyImage
	FamilyAudio
	FamilyVideo
)

// PageRange is a 1-indexed inclusive page interval for split.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Options carries the optional side data of a ShapeOptions conversion.
// Zero values mean "use the converter's default".
type Options struct {
	Quality         int    `json:"quality,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	Fit             string `json:"fit,omitempty"`
	OutputFormat    string `json:"format,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Bitrate         string `json:"bitrate,omitempty"`
}

// Payload is the raw material handed to Route. Only the fields matching
// the format's shape may be set.
type Payload struct {
	Buffer  []byte
	Buffers [][]byte
	Names   []string
	Ranges  []PageRange
	Options *Options
}

// Descriptor is a validated, shaped conversion task ready for the worker
// pool. Producing one has no side effects.
type Descriptor struct {
	Format  Format
	Shape   Shape
	Family  Family
	Payload Payload
}

var (
	ErrUnknownFormat = errors.New("unknown conversion format")
	ErrBadPayload    = errors.New("payload does not match format shape")
)

type entry struct {
	shape  Shape
	family Family
	ext    string
}

var table = map[Format]entry{
	FormatWord:  {ShapeSingle, FamilyDocument, ".docx"},
	FormatExcel: {ShapeSingle, FamilyDocument, ".xlsx"},
	FormatPpt:   {ShapeSingle, FamilyDocument, ".pptx"},
	FormatJpg:   {ShapeSingle, FamilyDocument, ".zip"},
	FormatPng:   {ShapeSingle, FamilyDocument, ".zip"},

	FormatWordToPdf:  {ShapeSingle, FamilyDocument, ".pdf"},
	FormatExcelToPdf: {ShapeSingle, FamilyDocument, ".pdf"},
	FormatPptToPdf:   {ShapeSingle, FamilyDocument, ".pdf"},

	FormatMerge:    {ShapeMultiNamed, FamilyPDF, ".pdf"},
	FormatSplit:    {ShapeRanges, FamilyPDF, ".zip"},
	FormatCompress: {ShapeOptions, FamilyPDF, ".pdf"},

	FormatJpgToPng:      {ShapeSingle, FamilyImage, ".png"},
	FormatPngToJpg:      {ShapeOptions, FamilyImage, ".jpg"},
	FormatJpgToWebp:     {ShapeOptions, FamilyImage, ".webp"},
	FormatPngToWebp:     {ShapeOptions, FamilyImage, ".webp"},
	FormatWebpToJpg:     {ShapeSingle, FamilyImage, ".jpg"},
	FormatWebpToPng:     {ShapeSingle, FamilyImage, ".png"},
	FormatHeicToJpg:     {ShapeOptions, FamilyImage, ".jpg"},
	FormatHeicToPng:     {ShapeSingle, FamilyImage, ".png"},
	FormatHeicToWebp:    {ShapeOptions, FamilyImage, ".webp"},
	FormatResize:        {ShapeOptions, FamilyImage, ".resized"},
	FormatCompressImage: {ShapeOptions, FamilyImage, ".compressed"},

	FormatMp3: {ShapeSingle, FamilyAudio, ".mp3"},
	FormatWav: {ShapeSingle, FamilyAudio, ".wav"},
	FormatOgg: {ShapeSingle, FamilyAudio, ".ogg"},
	FormatM4a: {ShapeSingle, FamilyAudio, ".m4a"},
	FormatAac: {ShapeSingle, FamilyAudio, ".aac"},

	FormatMp4:           {ShapeSingle, FamilyVideo, ".mp4"},
	FormatMov:           {ShapeSingle, FamilyVideo, ".mov"},
	FormatWebm:          {ShapeSingle, FamilyVideo, ".webm"},
	FormatMkv:           {ShapeSingle, FamilyVideo, ".mkv"},
	FormatCompressVideo: {ShapeOptions, FamilyVideo, ".mp4"},
	FormatGif:           {ShapeSingle, FamilyVideo, ".gif"},
}

// Supported reports whether f is a known format.
func Supported(f Format) bool {
	_, ok := table[f]
	return ok
}

// Ext returns the output file extension for a format, or "" if unknown.
func Ext(f Format) string {
	return table[f].ext
}

// Route validates the format against the closed set and shapes the payload
// into a Descriptor. It performs no I/O and must be called before any blob
// is fetched or any worker is engaged.
func Route(f Format, p Payload) (Descriptor, error) {
	e, ok := table[f]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	switch e.shape {
	case ShapeSingle, ShapeOptions:
		// Options may be nil; converters apply their own defaults.
		if len(p.Buffer) == 0 {
			return Descriptor{}, fmt.Errorf("%w: %s requires a source buffer", ErrBadPayload, f)
		}
		if len(p.Buffers) != 0 || len(p.Ranges) != 0 {
			return Descriptor{}, fmt.Errorf("%w: %s takes a single buffer", ErrBadPayload, f)
		}
	case ShapeMultiNamed:
		if len(p.Buffers) < 2 {
			return Descriptor{}, fmt.Errorf("%w: %s requires at least two buffers", ErrBadPayload, f)
		}
		if len(p.Names) != len(p.Buffers) {
			return Descriptor{}, fmt.Errorf("%w: %s requires one name per buffer", ErrBadPayload, f)
		}
	case ShapeRanges:
		if len(p.Buffer) == 0 {
			return Descriptor{}, fmt.Errorf("%w: %s requires a source buffer", ErrBadPayload, f)
		}
		if len(p.Ranges) == 0 {
			return Descriptor{}, fmt.Errorf("%w: %s requires at least one page range", ErrBadPayload, f)
		}
		for _, r := range p.Ranges {
			if r.Start < 1 || r.End < r.Start {
				return Descriptor{}, fmt.Errorf("%w: invalid page range %d-%d", ErrBadPayload, r.Start, r.End)
			}
		}
	}

	return Descriptor{Format: f, Shape: e.shape, Family: e.family, Payload: p}, nil
}
