// Package export renders the migration report as PDF, DOCX or CSV and can
// archive the rendered file in S3-compatible storage.
package export

import (
	"errors"

	"migrationhub/api/internal/reports"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPDF, FormatDOCX, FormatCSV:
		return Format(s), nil
	case "":
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation
type Request struct {
	Format      Format
	Report      reports.Report
	Statuses    []reports.MigrationStatus
	GeneratedBy string
	Archive     bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// ArchiveURL is a presigned download link when the file was archived.
	ArchiveURL string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrArchiveUnavailable is returned when archiving is requested without storage configured.
	ErrArchiveUnavailable = errors.New("report archive not configured")
)
