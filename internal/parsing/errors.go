package parsing

import "fmt"

// DocumentError represents a failure to read the source document
type DocumentError struct {
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("document error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("document error: %s", e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// AnomalyKind names a decoding anomaly.
type AnomalyKind string

// Decoding anomalies. They are recorded and never abort decoding.
const (
	// AnomalyCategoryLabel is a row where a category label was expected but
	// the cell held none of the category markers
	AnomalyCategoryLabel AnomalyKind = "category_label"
	// AnomalyGroupLabel is a row where a group label was expected but the
	// cell was empty or missing
	AnomalyGroupLabel AnomalyKind = "group_label"
)

// Anomaly records where and why the decoder could not follow the expected layout
type Anomaly struct {
	Row  int         `json:"row"`
	Kind AnomalyKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("row %d: %s %q", a.Row, a.Kind, a.Text)
}
