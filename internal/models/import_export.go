package models

// ImportValidationError describes one rejected row in a batch import.
// Malformed rows are reported and skipped; the batch continues.
type ImportValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// ImportResult summarizes a CSV/Excel question import.
type ImportResult struct {
	TotalRows     int                     `json:"total_rows"`
	ProcessedRows int                     `json:"processed_rows"`
	SuccessCount  int                     `json:"success_count"`
	ErrorCount    int                     `json:"error_count"`
	Errors        []ImportValidationError `json:"errors,omitempty"`
	Questions     []*Question             `json:"questions,omitempty"`
}

// ExportFileName is the download name for exported quiz templates.
const ExportFileName = "quiz_template.csv"
