package export

import (
	"context"
	"fmt"
)

type renderFunc func(ctx context.Context, html string, filename string) (*Result, error)

// Service renders reports and optionally archives the output.
type Service struct {
	pdf     renderFunc
	docx    renderFunc
	archive Archiver
}

// NewService creates an export service. archive may be nil.
func NewService(archive Archiver) *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX, archive: archive}
}

func (s *Service) ArchiveEnabled() bool {
	return s.archive != nil
}

// Export generates the report in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Archive && s.archive == nil {
		return nil, ErrArchiveUnavailable
	}
	filename := reportFilename(req.Report.GeneratedAt)

	var (
		result *Result
		err    error
	)
	switch req.Format {
	case FormatCSV:
		result, err = exportCSV(req.Statuses, filename)
	case FormatPDF, FormatDOCX:
		html, renderErr := RenderReportHTML(newTemplateData(req))
		if renderErr != nil {
			return nil, fmt.Errorf("render template: %w", renderErr)
		}
		if req.Format == FormatPDF {
			result, err = s.pdf(ctx, html, filename)
		} else {
			result, err = s.docx(ctx, html, filename)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	if req.Archive {
		link, err := s.archive.Put(ctx, archiveKey(req.Report.GeneratedAt, result.Filename), result)
		if err != nil {
			return nil, fmt.Errorf("archive export: %w", err)
		}
		result.ArchiveURL = link
	}
	return result, nil
}
