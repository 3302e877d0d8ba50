// Package converter fans shaped conversion tasks out to the capability
// that serves them. The image family is implemented in-process; document,
// PDF and audio/video work is delegated to external engines behind
// interfaces so the pipeline can run against any backend.
package converter

import (
	"context"
	"fmt"

	"github.com/newsupernova0617/convert-for-you/internal/formats"
)

// Error is a conversion failure with an optional machine-readable code.
// Callers use the code to distinguish classifiable failures (a missing
// export filter) from generic ones.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrorCode implements the coding interface the worker pool looks for.
func (e *Error) ErrorCode() string { return e.Code }

const (
	// CodeNoExportFilter means the document engine lacks the export
	// capability the requested conversion needs on this host.
	CodeNoExportFilter = "NO_EXPORT_FILTER"
	// CodeCapabilityUnavailable means no engine is wired for the family.
	CodeCapabilityUnavailable = "CAPABILITY_UNAVAILABLE"
	// CodeHeicUnsupported means no HEIC decoder is wired.
	CodeHeicUnsupported = "HEIC_UNSUPPORTED"
)

// DocumentEngine converts between PDF and office/image-archive formats.
// A LibreOffice-class collaborator; invocations may take seconds and are
// CPU-bound.
type DocumentEngine interface {
	Convert(ctx context.Context, input []byte, format formats.Format) ([]byte, error)
}

// PDFEngine performs the PDF utility operations.
type PDFEngine interface {
	Merge(ctx context.Context, buffers [][]byte, names []string) ([]byte, error)
	Split(ctx context.Context, buffer []byte, ranges []formats.PageRange) ([]byte, error)
	Compress(ctx context.Context, buffer []byte, quality int) ([]byte, error)
}

// Transcoder handles the audio and video families, including GIF.
type Transcoder interface {
	Transcode(ctx context.Context, input []byte, format formats.Format, opts *formats.Options) ([]byte, error)
}

// Registry holds one capability per format family.
type Registry struct {
	Documents DocumentEngine
	PDFs      PDFEngine
	Media     Transcoder
	Images    *ImageConverter
}

// NewRegistry wires the capabilities. Any engine may be nil; conversions
// needing it fail with CodeCapabilityUnavailable.
func NewRegistry(docs DocumentEngine, pdfs PDFEngine, media Transcoder, images *ImageConverter) *Registry {
	if images == nil {
		images = &ImageConverter{}
	}
	return &Registry{Documents: docs, PDFs: pdfs, Media: media, Images: images}
}

// Convert executes one validated descriptor against the matching capability.
func (r *Registry) Convert(ctx context.Context, d formats.Descriptor) ([]byte, error) {
	switch d.Family {
	case formats.FamilyDocument:
		if r.Documents == nil {
			return nil, unavailable("document engine")
		}
		return r.Documents.Convert(ctx, d.Payload.Buffer, d.Format)
	case formats.FamilyPDF:
		if r.PDFs == nil {
			return nil, unavailable("pdf engine")
		}
		switch d.Format {
		case formats.FormatMerge:
			return r.PDFs.Merge(ctx, d.Payload.Buffers, d.Payload.Names)
		case formats.FormatSplit:
			return r.PDFs.Split(ctx, d.Payload.Buffer, d.Payload.Ranges)
		default:
			quality := 0
			if d.Payload.Options != nil {
				quality = d.Payload.Options.Quality
			}
			return r.PDFs.Compress(ctx, d.Payload.Buffer, quality)
		}
	case formats.FamilyImage:
		return r.Images.Convert(ctx, d)
	case formats.FamilyAudio, formats.FamilyVideo:
		if r.Media == nil {
			return nil, unavailable("transcoder")
		}
		return r.Media.Transcode(ctx, d.Payload.Buffer, d.Format, d.Payload.Options)
	default:
		return nil, &Error{Message: fmt.Sprintf("no capability for family %d", d.Family)}
	}
}

func unavailable(what string) error {
	return &Error{
		Code:    CodeCapabilityUnavailable,
		Message: fmt.Sprintf("%s is not available on this host", what),
	}
}
