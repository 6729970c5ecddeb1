// Package archive packages extracted file records into ZIP archives.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/codeforge-ai/codeforge/pkg/extract"
)

// Build writes each record as a ZIP entry and returns the archive
// bytes. Leading slashes are stripped from entry names so archives
// never contain absolute paths; any further path sanitization is the
// caller's concern. Duplicate paths become duplicate entries, matching
// the extractor's ordering contract.
func Build(records []extract.FileRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, rec := range records {
		name := strings.TrimLeft(rec.Path, "/")
		if name == "" {
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %q: %w", name, err)
		}
		if _, err := f.Write([]byte(rec.Content)); err != nil {
			return nil, fmt.Errorf("write zip entry %q: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}
