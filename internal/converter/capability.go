package converter

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/newsupernova0617/convert-for-you/internal/formats"
)

// Minimal single-page PDF used to probe the document engine.
const probePDF = "%PDF-1.1\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 144] /Contents 4 0 R " +
	"/Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n" +
	"4 0 obj\n<< /Length 55 >>\nstream\nBT /F1 24 Tf 72 96 Td (Hello, World!) Tj ET\nendstream\nendobj\n" +
	"5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n" +
	"trailer\n<< /Size 6 /Root 1 0 R >>\n%%EOF\n"

// CapabilityStatus reports the outcome of the last export-filter probe.
type CapabilityStatus struct {
	Supported bool   `json:"supported"`
	Probed    bool   `json:"probed"`
	LastError string `json:"last_error,omitempty"`
}

// CapabilityProbe checks once, lazily, whether the document engine can
// export PDF to spreadsheet form on this host. Some engine builds ship
// without the required export filter; probing up front lets callers map
// the failure to a distinct status instead of a generic 500.
type CapabilityProbe struct {
	Engine DocumentEngine

	// ForceEnable / ForceDisable skip the probe entirely.
	ForceEnable  bool
	ForceDisable bool

	mu       sync.Mutex
	probed   bool
	ok       bool
	lastErr  error
	inFlight *sync.WaitGroup
}

// EnsureExcelExport returns whether PDF -> Excel conversion is available,
// probing the engine on first call. Concurrent callers share one probe.
func (p *CapabilityProbe) EnsureExcelExport(ctx context.Context) bool {
	p.mu.Lock()
	if p.ForceEnable {
		p.mu.Unlock()
		return true
	}
	if p.ForceDisable {
		p.mu.Unlock()
		return false
	}
	if p.probed {
		ok := p.ok
		p.mu.Unlock()
		return ok
	}
	if p.inFlight != nil {
		wg := p.inFlight
		p.mu.Unlock()
		wg.Wait()
		p.mu.Lock()
		ok := p.ok
		p.mu.Unlock()
		return ok
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	p.inFlight = wg
	p.mu.Unlock()

	ok, err := p.runProbe(ctx)

	p.mu.Lock()
	p.probed = true
	p.ok = ok
	p.lastErr = err
	p.inFlight = nil
	p.mu.Unlock()
	wg.Done()
	return ok
}

func (p *CapabilityProbe) runProbe(ctx context.Context) (bool, error) {
	if p.Engine == nil {
		return false, unavailable("document engine")
	}
	out, err := p.Engine.Convert(ctx, []byte(probePDF), formats.FormatExcel)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, &Error{Code: CodeNoExportFilter, Message: "export probe produced no output"}
	}
	return true, nil
}

// Status reports the current probe state for the status endpoint.
func (p *CapabilityProbe) Status() CapabilityStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := CapabilityStatus{Supported: p.ok || p.ForceEnable, Probed: p.probed || p.ForceEnable || p.ForceDisable}
	if p.ForceDisable {
		s.Supported = false
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// IsNoExportFilter classifies an engine error as the missing-filter case.
func IsNoExportFilter(err error) bool {
	if err == nil {
		return false
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Code == CodeNoExportFilter {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no export filter")
}
