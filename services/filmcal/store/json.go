package store

import (
	"encoding/json"
	"os"

	"filmcalendar-backend/lib/records"
)

// WriteExport renders the master set as the single JSON array the
// website consumes. Same atomic replace discipline as the master CSV.
func WriteExport(path string, films []records.MasterFilm) error {
	return writeAtomic(path, "screenings-*.json", func(f *os.File) error {
		if films == nil {
			films = []records.MasterFilm{}
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(films)
	})
}
