// Package export renders a property's conveyancing timeline to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Report is the assembled content of one timeline export.
type Report struct {
	Address     string
	Postcode    string
	Price       float64
	Status      string
	Locked      bool
	GeneratedAt time.Time
	Stages      []ReportStage
	Messages    []ReportMessage
}

// ReportStage is one timeline entry in the export.
type ReportStage struct {
	Position        int
	Name            string
	Status          string
	Description     string
	ResponsibleRole string
	DueDate         *time.Time
	CompletedAt     *time.Time
}

// ReportMessage is one approved message included in the export.
type ReportMessage struct {
	Sender  string
	Content string
	SentAt  time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
