package converter

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/newsupernova0617/convert-for-you/internal/formats"
)

// GhostscriptEngine implements the PDF utilities (merge, split, compress)
// by shelling out to gs.
type GhostscriptEngine struct {
	binary string
}

func NewGhostscriptEngine() *GhostscriptEngine {
	bin, err := exec.LookPath("gs")
	if err != nil {
		log.Printf("[gs] binary not found, pdf utilities disabled")
		return &GhostscriptEngine{}
	}
	return &GhostscriptEngine{binary: bin}
}

func (e *GhostscriptEngine) Merge(ctx context.Context, buffers [][]byte, names []string) ([]byte, error) {
	if e.binary == "" {
		return nil, unavailable("pdf engine")
	}

	workdir, err := os.MkdirTemp("", "gs-merge-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	inputs := make([]string, 0, len(buffers))
	for i, b := range buffers {
		p := filepath.Join(workdir, fmt.Sprintf("in-%03d.pdf", i))
		if err := os.WriteFile(p, b, 0o600); err != nil {
			return nil, fmt.Errorf("write input: %w", err)
		}
		inputs = append(inputs, p)
	}

	out := filepath.Join(workdir, "merged.pdf")
	args := append([]string{
		"-dBATCH", "-dNOPAUSE", "-q",
		"-sDEVICE=pdfwrite",
		"-sOutputFile=" + out,
	}, inputs...)

	if err := e.run(ctx, args); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func (e *GhostscriptEngine) Split(ctx context.Context, buffer []byte, ranges []formats.PageRange) ([]byte, error) {
	if e.binary == "" {
		return nil, unavailable("pdf engine")
	}

	workdir, err := os.MkdirTemp("", "gs-split-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	in := filepath.Join(workdir, "input.pdf")
	if err := os.WriteFile(in, buffer, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	// One output document per requested range, archived together.
	parts := make([]string, 0, len(ranges))
	for i, r := range ranges {
		out := filepath.Join(workdir, fmt.Sprintf("pages-%d-%d-%03d.pdf", r.Start, r.End, i))
		args := []string{
			"-dBATCH", "-dNOPAUSE", "-q",
			"-sDEVICE=pdfwrite",
			fmt.Sprintf("-dFirstPage=%d", r.Start),
			fmt.Sprintf("-dLastPage=%d", r.End),
			"-sOutputFile=" + out,
			in,
		}
		if err := e.run(ctx, args); err != nil {
			return nil, err
		}
		parts = append(parts, out)
	}
	return zipFiles(parts)
}

// compressionSettings picks a gs preset by requested quality. Lower
// quality means a smaller file.
func compressionSettings(quality int) string {
	switch {
	case quality > 0 && quality <= 30:
		return "/screen"
	case quality > 70:
		return "/printer"
	default:
		return "/ebook"
	}
}

func (e *GhostscriptEngine) Compress(ctx context.Context, buffer []byte, quality int) ([]byte, error) {
	if e.binary == "" {
		return nil, unavailable("pdf engine")
	}

	workdir, err := os.MkdirTemp("", "gs-compress-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	in := filepath.Join(workdir, "input.pdf")
	if err := os.WriteFile(in, buffer, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	out := filepath.Join(workdir, "compressed.pdf")
	args := []string{
		"-dBATCH", "-dNOPAUSE", "-q",
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=" + compressionSettings(quality),
		"-sOutputFile=" + out,
		in,
	}
	if err := e.run(ctx, args); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func (e *GhostscriptEngine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &Error{Message: "pdf operation failed: " + msg}
	}
	return nil
}
