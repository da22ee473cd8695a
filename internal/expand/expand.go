package expand

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"classify-engine/internal/domain"
)

// Item is one image recovered from a submission.
type Item struct {
	Filename string
	Data     []byte
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// IsArchive reports whether the filename indicates a ZIP submission.
func IsArchive(name string) bool {
	return strings.EqualFold(path.Ext(name), ".zip")
}

// IsImage reports whether the filename carries an accepted image extension.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// Expand turns one submission payload into its constituent items.
//
// A non-archive payload yields exactly one item under its original name.
// A ZIP archive yields one item per entry with an accepted image extension;
// other entries are filtered out silently. An unreadable archive returns
// domain.ErrArchiveCorrupt, which fails the whole batch before any task is
// created.
func Expand(payload []byte, name string) ([]Item, bool, error) {
	if !IsArchive(name) {
		return []Item{{Filename: name, Data: payload}}, false, nil
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrArchiveCorrupt, err)
	}

	items := make([]Item, 0, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || !IsImage(entry.Name) {
			continue
		}

		data, err := readEntry(entry)
		if err != nil {
			return nil, true, fmt.Errorf("%w: entry %q: %v", domain.ErrArchiveCorrupt, entry.Name, err)
		}

		items = append(items, Item{Filename: entry.Name, Data: data})
	}

	return items, true, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	return io.ReadAll(rc)
}
