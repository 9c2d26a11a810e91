package schema

import "fmt"

// ExportFormat selects the artifact encoding.
type ExportFormat string

const (
	FormatVector         ExportFormat = "vector"
	FormatRasterLossless ExportFormat = "raster-lossless"
	FormatRasterLossy    ExportFormat = "raster-lossy"
)

// Extension returns the file extension including the dot.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatVector:
		return ".svg"
	case FormatRasterLossless:
		return ".png"
	case FormatRasterLossy:
		return ".jpg"
	}
	return ""
}

// MediaType returns the MIME type of the encoded artifact.
func (f ExportFormat) MediaType() string {
	switch f {
	case FormatVector:
		return "image/svg+xml"
	case FormatRasterLossless:
		return "image/png"
	case FormatRasterLossy:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// Raster reports whether the format needs rasterization.
func (f ExportFormat) Raster() bool {
	return f == FormatRasterLossless || f == FormatRasterLossy
}

// Label is the short upper-case name used in activity entries.
func (f ExportFormat) Label() string {
	switch f {
	case FormatVector:
		return "SVG"
	case FormatRasterLossless:
		return "PNG"
	case FormatRasterLossy:
		return "JPG"
	}
	return string(f)
}

// ParseExportFormat accepts a format name or a common alias (svg, png, jpg, jpeg).
func ParseExportFormat(s string) (ExportFormat, error) {
	switch s {
	case "vector", "svg":
		return FormatVector, nil
	case "raster-lossless", "png":
		return FormatRasterLossless, nil
	case "raster-lossy", "jpg", "jpeg":
		return FormatRasterLossy, nil
	}
	return "", NewErrorf(ErrCodeValidation, "unknown export format %q", s)
}

// FileName builds the suggested artifact file name for a source label.
func (f ExportFormat) FileName(label string) string {
	if label == "" {
		label = "db"
	}
	return fmt.Sprintf("erd-%s%s", label, f.Extension())
}

// Artifact is an encoded export ready to hand to the user.
type Artifact struct {
	Format    ExportFormat `json:"format"`
	Bytes     []byte       `json:"-"`
	FileName  string       `json:"file_name"`
	MediaType string       `json:"media_type"`
	Width     int          `json:"width,omitempty"`
	Height    int          `json:"height,omitempty"`
}
