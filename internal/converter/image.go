package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/newsupernova0617/convert-for-you/internal/formats"
)

const defaultJPEGQuality = 90

// HEICDecoder is the optional external decoder for HEIC sources; the
// standard image stack cannot read them.
type HEICDecoder interface {
	Decode(input []byte) (image.Image, error)
}

// ImageConverter implements the image family: format conversions, resize,
// and lossy re-compression.
type ImageConverter struct {
	HEIC HEICDecoder
}

func (c *ImageConverter) Convert(ctx context.Context, d formats.Descriptor) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := d.Payload.Options
	src := d.Payload.Buffer

	switch d.Format {
	case formats.FormatJpgToPng, formats.FormatWebpToPng:
		img, _, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		return encodePNG(img)

	case formats.FormatWebpToJpg:
		img, _, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		return encodeJPEG(img, quality(opts, defaultJPEGQuality))

	case formats.FormatPngToJpg:
		img, _, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		// JPEG has no alpha; flatten onto the requested background first.
		bg := color.NRGBA{255, 255, 255, 255}
		if opts != nil && opts.BackgroundColor != "" {
			parsed, err := parseHexColor(opts.BackgroundColor)
			if err != nil {
				return nil, err
			}
			bg = parsed
		}
		canvas := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), bg)
		flat := imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
		return encodeJPEG(flat, quality(opts, defaultJPEGQuality))

	case formats.FormatJpgToWebp, formats.FormatPngToWebp:
		img, _, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		return encodeWebP(img, quality(opts, 75))

	case formats.FormatHeicToJpg, formats.FormatHeicToPng, formats.FormatHeicToWebp:
		if c.HEIC == nil {
			return nil, &Error{Code: CodeHeicUnsupported, Message: "no HEIC decoder is available on this host"}
		}
		img, err := c.HEIC.Decode(src)
		if err != nil {
			return nil, fmt.Errorf("decode heic: %w", err)
		}
		switch d.Format {
		case formats.FormatHeicToPng:
			return encodePNG(img)
		case formats.FormatHeicToWebp:
			return encodeWebP(img, quality(opts, 75))
		default:
			return encodeJPEG(img, quality(opts, defaultJPEGQuality))
		}

	case formats.FormatResize:
		img, origFormat, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		if opts == nil || (opts.Width == 0 && opts.Height == 0) {
			return nil, &Error{Message: "resize requires a target width or height"}
		}
		resized := resize(img, opts)
		return encodeAs(resized, outputFormat(opts, origFormat), quality(opts, 80))

	case formats.FormatCompressImage:
		img, origFormat, err := c.decode(src)
		if err != nil {
			return nil, err
		}
		return encodeAs(img, origFormat, quality(opts, 70))
	}

	return nil, &Error{Message: fmt.Sprintf("image converter cannot handle %q", d.Format)}
}

// decode sniffs the source bytes and decodes them, returning the detected
// format name (jpeg, png, webp).
func (c *ImageConverter) decode(buf []byte) (image.Image, string, error) {
	mime := mimetype.Detect(buf)
	if mime.Is("image/webp") {
		img, err := webp.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, "", fmt.Errorf("decode webp: %w", err)
		}
		return img, "webp", nil
	}
	img, name, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, name, nil
}

func resize(img image.Image, opts *formats.Options) image.Image {
	w, h := opts.Width, opts.Height
	switch opts.Fit {
	case "contain", "inside":
		return imaging.Fit(img, w, h, imaging.Lanczos)
	case "fill":
		return imaging.Resize(img, w, h, imaging.Lanczos)
	default: // cover
		if w > 0 && h > 0 {
			return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
		}
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}
}

func outputFormat(opts *formats.Options, fallback string) string {
	if opts != nil && opts.OutputFormat != "" {
		return opts.OutputFormat
	}
	return fallback
}

func quality(opts *formats.Options, def int) int {
	if opts != nil && opts.Quality > 0 {
		return opts.Quality
	}
	return def
}

func encodeAs(img image.Image, format string, q int) ([]byte, error) {
	switch format {
	case "png":
		return encodePNG(img)
	case "webp":
		return encodeWebP(img, q)
	case "jpeg", "jpg":
		return encodeJPEG(img, q)
	default:
		return nil, &Error{Message: fmt.Sprintf("unsupported output image format %q", format)}
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image, q int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, q int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(q)}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.NRGBA{}, &Error{Message: fmt.Sprintf("invalid background color %q", s)}
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, &Error{Message: fmt.Sprintf("invalid background color %q", s)}
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
