// Package zip bundles export artifacts into a single archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// Entry is one file inside a bundle.
type Entry struct {
	Name string
	Data []byte
}

// Bundle writes the entries into a zip archive. Entries are sorted by
// name first so the same inputs always produce the same archive.
func Bundle(entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		if e.Name == "" {
			return nil, fmt.Errorf("zip: entry name is required")
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("zip: duplicate entry %q", e.Name)
		}
		seen[e.Name] = true

		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
