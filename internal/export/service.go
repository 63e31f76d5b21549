package export

import (
	"fmt"
)

// Service renders timeline reports.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export generates a report in the requested format.
func (s *Service) Export(report Report, format Format) (*Result, error) {
	html, err := RenderTimelineHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, report.Address)
	case FormatDOCX:
		return exportDOCX(html, report.Address)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
