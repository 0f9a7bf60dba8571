// Package schemas embeds the JSON Schemas for exported artifacts.
package schemas

import "embed"

// Schema file names
const (
	Report          = "report.schema.json"
	Recommendations = "recommendations.schema.json"
	Ratings         = "ratings.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Read returns the raw schema document.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// Names lists every embedded schema.
func Names() []string {
	return []string{Report, Recommendations, Ratings}
}
