package handler

import "github.com/newsupernova0617/convert-for-you/internal/formats"

// ConvertParams is the JSON body of the document conversion endpoints.
// File is the storage key returned by the upload endpoint.
type ConvertParams struct {
	File         string `json:"file" validate:"required"`
	Format       string `json:"format" validate:"required,max=32"`
	OriginalName string `json:"originalName" validate:"omitempty,max=255"`
}

type MergeParams struct {
	Files []string `json:"files" validate:"required,min=2,max=20,dive,required"`
	Names []string `json:"names" validate:"required,min=2,max=20,dive,required"`
}

type SplitParams struct {
	File         string              `json:"file" validate:"required"`
	OriginalName string              `json:"originalName" validate:"omitempty,max=255"`
	Ranges       []formats.PageRange `json:"ranges" validate:"required,min=1,max=100"`
}

type CompressParams struct {
	File         string `json:"file" validate:"required"`
	OriginalName string `json:"originalName" validate:"omitempty,max=255"`
	Quality      int    `json:"quality" validate:"omitempty,gte=1,lte=100"`
}

// ImageParams covers every image-family conversion; the optional knobs
// apply only where the target format uses them.
type ImageParams struct {
	File            string `json:"file" validate:"required"`
	Format          string `json:"format" validate:"required,max=32"`
	OriginalName    string `json:"originalName" validate:"omitempty,max=255"`
	Quality         int    `json:"quality" validate:"omitempty,gte=1,lte=100"`
	Width           int    `json:"width" validate:"omitempty,gte=1,lte=10000"`
	Height          int    `json:"height" validate:"omitempty,gte=1,lte=10000"`
	Fit             string `json:"fit" validate:"omitempty,oneof=cover contain fill"`
	OutputFormat    string `json:"outputFormat" validate:"omitempty,max=16"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,max=16"`
}

// ConvertResponse is the common success envelope of the conversion
// endpoints.
type ConvertResponse struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId"`
	StoragePath string `json:"storagePath"`
	FileName    string `json:"fileName"`
}

type UploadResponse struct {
	Success     bool   `json:"success"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
	Size        int    `json:"size"`
}
