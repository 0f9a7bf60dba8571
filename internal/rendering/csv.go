package rendering

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet applications detect UTF-8 for the Chinese headers
const utf8BOM = "\uFEFF"

// renderCSV produces CSV encoded bytes for the dataset.
func renderCSV(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, &RenderError{Message: "csv requires at least one header"}
	}
	buf := &bytes.Buffer{}
	buf.WriteString(utf8BOM)

	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, &RenderError{Message: "write csv headers", Cause: err}
	}
	for i, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for j, header := range data.Headers {
			record[j] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("write csv row %d", i), Cause: err}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, &RenderError{Message: "flush csv", Cause: err}
	}
	return buf.Bytes(), nil
}
