package converter

import (
	"archive/zip"
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

// sofficeTargets maps conversion formats to LibreOffice --convert-to
// targets. PDF sources additionally need the writer import filter.
var sofficeTargets = map[formats.Format]struct {
	target    string
	pdfSource bool
}{
	formats.FormatWord:  {"docx:MS Word 2007 XML", true},
	formats.FormatExcel: {"xlsx:Calc MS Excel 2007 XML", true},
	formats.FormatPpt:   {"pptx:Impress MS PowerPoint 2007 XML", true},
	formats.FormatJpg:   {"jpg", true},
	formats.FormatPng:   {"png", true},

	formats.FormatWordToPdf:  {"pdf", false},
	formats.FormatExcelToPdf: {"pdf:calc_pdf_Export", false},
	formats.FormatPptToPdf:   {"pdf:impress_pdf_Export", false},
}

// SofficeEngine runs document conversions through a headless LibreOffice
// process. Each invocation gets its own user profile directory so
// concurrent runs never fight over the profile lock.
type SofficeEngine struct {
	binary string
}

// NewSofficeEngine locates the soffice binary. A missing binary is not an
// error here; conversions report the capability as unavailable.
func NewSofficeEngine() *SofficeEngine {
	bin, err := exec.LookPath("soffice")
	if err != nil {
		log.Printf("[soffice] binary not found, document conversions disabled")
		return &SofficeEngine{}
	}
	return &SofficeEngine{binary: bin}
}

func (e *SofficeEngine) Convert(ctx context.Context, input []byte, format formats.Format) ([]byte, error) {
	if e.binary == "" {
		return nil, unavailable("document engine")
	}
	spec, ok := sofficeTargets[format]
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("document engine cannot produce %s", format)}
	}

	workdir, err := os.MkdirTemp("", "soffice-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	inName := "input.bin"
	if spec.pdfSource {
		inName = "input.pdf"
	}
	inPath := filepath.Join(workdir, inName)
	if err := os.WriteFile(inPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	args := []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=file://" + filepath.Join(workdir, "profile"),
	}
	if spec.pdfSource {
		args = append(args, "--infilter=writer_pdf_import")
	}
	args = append(args, "--convert-to", spec.target, "--outdir", workdir, inPath)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifySofficeError(stderr.String(), err)
	}

	outputs, err := collectOutputs(workdir, inName)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		// soffice exits zero even when the export filter is missing.
		return nil, classifySofficeError(stderr.String(), fmt.Errorf("no output produced"))
	}

	// Page-per-file exports (pdf to jpg/png) are delivered as one archive.
	if format == formats.FormatJpg || format == formats.FormatPng {
		return zipFiles(outputs)
	}
	return os.ReadFile(outputs[0])
}

func classifySofficeError(stderr string, err error) error {
	if strings.Contains(strings.ToLower(stderr), "no export filter") {
		return &Error{Code: CodeNoExportFilter, Message: "document engine lacks the required export filter"}
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return &Error{Message: "document conversion failed: " + msg}
}

// collectOutputs lists conversion products in the workdir, skipping the
// input file and the profile directory.
func collectOutputs(dir, inName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == inName {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func zipFiles(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
