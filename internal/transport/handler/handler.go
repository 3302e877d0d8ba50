package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/newsupernova0617/convert-for-you/internal/config"
	"github.com/newsupernova0617/convert-for-you/internal/converter"
	"github.com/newsupernova0617/convert-for-you/internal/formats"
	"github.com/newsupernova0617/convert-for-you/internal/pool"
	use_case "github.com/newsupernova0617/convert-for-you/internal/use-case"
)

type UseCase interface {
	Convert(ctx context.Context, req use_case.ConvertRequest) (use_case.ConvertResult, error)
	Download(ctx context.Context, id string) (use_case.DownloadResult, error)
	Upload(ctx context.Context, originalName, contentType string, data []byte) (use_case.UploadResult, error)
	AdminDelete(ctx context.Context, id string) error
}

// PoolStats exposes the worker pool snapshot for the status endpoint.
type PoolStats interface {
	Stats() pool.Stats
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
	pool      PoolStats
	probe     *converter.CapabilityProbe
}

func New(useCase UseCase, cfg *config.Config, poolStats PoolStats, probe *converter.CapabilityProbe) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
		pool:      poolStats,
		probe:     probe,
	}
}

// Convert handles PDF <-> Office conversions and the audio/video formats:
// everything with one source file and no extra shaping data.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var params ConvertParams
	if !h.decode(w, r, &params) {
		return
	}

	res, err := h.useCase.Convert(r.Context(), use_case.ConvertRequest{
		SourceKeys:   []string{params.File},
		Format:       formats.Format(params.Format),
		OriginalName: params.OriginalName,
	})
	if err != nil {
		writeConvertError(w, err)
		return
	}
	h.writeConvertResponse(w, res)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var params MergeParams
	if !h.decode(w, r, &params) {
		return
	}
	if len(params.Names) != len(params.Files) {
		writeJSONError(w, "names must match files one to one", http.StatusBadRequest)
		return
	}

	original := params.Names[0]
	res, err := h.useCase.Convert(r.Context(), use_case.ConvertRequest{
		SourceKeys:   params.Files,
		Format:       formats.FormatMerge,
		OriginalName: original,
		Names:        params.Names,
	})
	if err != nil {
		writeConvertError(w, err)
		return
	}
	h.writeConvertResponse(w, res)
}

func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	var params SplitParams
	if !h.decode(w, r, &params) {
		return
	}

	res, err := h.useCase.Convert(r.Context(), use_case.ConvertRequest{
		SourceKeys:   []string{params.File},
		Format:       formats.FormatSplit,
		OriginalName: params.OriginalName,
		Ranges:       params.Ranges,
	})
	if err != nil {
		writeConvertError(w, err)
		return
	}
	h.writeConvertResponse(w, res)
}

func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	var params CompressParams
	if !h.decode(w, r, &params) {
		return
	}

	res, err := h.useCase.Convert(r.Context(), use_case.ConvertRequest{
		SourceKeys:   []string{params.File},
		Format:       formats.FormatCompress,
		OriginalName: params.OriginalName,
		Options:      &formats.Options{Quality: params.Quality},
	})
	if err != nil {
		writeConvertError(w, err)
		return
	}
	h.writeConvertResponse(w, res)
}

func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	var params ImageParams
	if !h.decode(w, r, &params) {
		return
	}

	res, err := h.useCase.Convert(r.Context(), use_case.ConvertRequest{
		SourceKeys:   []string{params.File},
		Format:       formats.Format(params.Format),
		OriginalName: params.OriginalName,
		Options: &formats.Options{
			Quality:         params.Quality,
			Width:           params.Width,
			Height:          params.Height,
			Fit:             params.Fit,
			OutputFormat:    params.OutputFormat,
			BackgroundColor: params.BackgroundColor,
		},
	})
	if err != nil {
		writeConvertError(w, err)
		return
	}
	h.writeConvertResponse(w, res)
}

// Upload stores a source file for later conversion. The file type is
// sniffed from content, not trusted from the request.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing file: form field key should be "file"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !mimeAllowed(mime.String()) {
		writeJSONError(w, fmt.Sprintf("unsupported file type: %s", mime.String()), http.StatusBadRequest)
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := h.useCase.Upload(r.Context(), fh.Filename, mime.String(), data)
	if err != nil {
		writeConvertError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(UploadResponse{
		Success:     true,
		FileName:    res.FileName,
		StoragePath: res.StoragePath,
		Size:        res.Size,
	})
}

// Download streams a converted artifact while its record is still live.
// Expired or retired files are indistinguishable from ones that never
// existed.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		writeJSONError(w, "file id is required", http.StatusBadRequest)
		return
	}

	res, err := h.useCase.Download(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, use_case.ErrNotFound) {
			writeJSONError(w, "file not found or expired", http.StatusNotFound)
			return
		}
		writeJSONError(w, "download failed", http.StatusInternalServerError)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(res.Data)))
	_, _ = w.Write(res.Data)
}

// AdminDelete retires a file ahead of its TTL.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		writeJSONError(w, "file id is required", http.StatusBadRequest)
		return
	}

	if err := h.useCase.AdminDelete(r.Context(), fileID); err != nil {
		if errors.Is(err, use_case.ErrNotFound) {
			writeJSONError(w, "file not found or expired", http.StatusNotFound)
			return
		}
		writeJSONError(w, "delete failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Status reports pool occupancy and the document-engine capability probe.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Pool       pool.Stats                  `json:"pool"`
		PdfToExcel *converter.CapabilityStatus `json:"pdfToExcel,omitempty"`
	}{}
	if h.pool != nil {
		resp.Pool = h.pool.Stats()
	}
	if h.probe != nil {
		s := h.probe.Status()
		resp.PdfToExcel = &s
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// decode reads a JSON body into params and runs struct validation.
// Writes the error response itself and reports whether to proceed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, params any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validator.Struct(params); err != nil {
		writeValidationErrors(w, err)
		return false
	}
	return true
}

func (h *Handler) writeConvertResponse(w http.ResponseWriter, res use_case.ConvertResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ConvertResponse{
		Success:     true,
		FileID:      res.FileID,
		StoragePath: res.StoragePath,
		FileName:    res.FileName,
	})
}
