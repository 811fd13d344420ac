package parser

import (
	"path/filepath"
	"strings"
)

const (
	MimePDF      = "application/pdf"
	MimeCSV      = "text/csv"
	MimeXLS      = "application/vnd.ms-excel"
	MimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeText     = "text/plain"
	MimeHTML     = "text/html"
	MimeJSON     = "application/json"
	MimeMarkdown = "text/markdown"
)

var extensionToMime = map[string]string{
	".pdf":  MimePDF,
	".csv":  MimeCSV,
	".xls":  MimeXLS,
	".xlsx": MimeXLSX,
	".doc":  MimeDOCX,
	".docx": MimeDOCX,
	".ppt":  MimePPTX,
	".pptx": MimePPTX,
	".txt":  MimeText,
	".html": MimeHTML,
	".htm":  MimeHTML,
	".json": MimeJSON,
	".md":   MimeMarkdown,
}

var mimeLabels = map[string]string{
	MimePDF:      "PDF",
	MimeCSV:      "CSV",
	MimeXLS:      "Excel (XLS)",
	MimeXLSX:     "Excel (XLSX)",
	MimeDOCX:     "Word",
	MimePPTX:     "PowerPoint",
	MimeText:     "Text",
	MimeHTML:     "HTML",
	MimeJSON:     "JSON",
	MimeMarkdown: "Markdown",
}

// MimeTypeFromFilename returns "" for unknown extensions.
func MimeTypeFromFilename(filename string) string {
	return extensionToMime[strings.ToLower(filepath.Ext(filename))]
}

// ExtensionForMime returns the canonical extension, without the dot.
func ExtensionForMime(mimeType string) string {
	switch baseMime(mimeType) {
	case MimePDF:
		return "pdf"
	case MimeCSV:
		return "csv"
	case MimeXLS:
		return "xls"
	case MimeXLSX:
		return "xlsx"
	case MimeDOCX:
		return "docx"
	case MimePPTX:
		return "pptx"
	case MimeHTML:
		return "html"
	case MimeJSON:
		return "json"
	case MimeMarkdown:
		return "md"
	case MimeText:
		return "txt"
	}
	return "bin"
}

func MimeTypeLabel(mimeType string) string {
	if label, ok := mimeLabels[mimeType]; ok {
		return label
	}
	return mimeType
}

func IsSupportedFileType(mimeType string) bool {
	_, ok := mimeLabels[baseMime(mimeType)]
	return ok
}

func DefaultParsingInstruction(mimeType string) string {
	switch mimeType {
	case MimePDF:
		return "Extract all text content while preserving structure and formatting. Include tables, headers, and maintain document hierarchy."
	case MimeCSV, MimeXLS, MimeXLSX:
		return "Extract all data from the spreadsheet. Preserve table structure, column headers, and data relationships. Convert to markdown tables where appropriate."
	case MimeDOCX:
		return "Extract all text content preserving document structure, headings, lists, tables, and formatting. Maintain the document hierarchy."
	case MimePPTX:
		return "Extract all text content from slides. Include slide titles, body text, and notes. Preserve the presentation structure."
	case MimeText, MimeMarkdown:
		return "Extract all text content as-is."
	case MimeHTML:
		return "Extract text content from HTML, preserving semantic structure. Convert to clean markdown."
	case MimeJSON:
		return "Parse JSON structure and convert to readable markdown format."
	}
	return "Extract all text content while preserving structure and formatting."
}

// baseMime strips parameters such as "; charset=utf-8".
func baseMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
