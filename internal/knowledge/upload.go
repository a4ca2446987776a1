package knowledge

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// FileType constants
const (
	FileTypeTXT  = "txt"
	FileTypeMD   = "md"
	FileTypeCSV  = "csv"
	FileTypeHTML = "html"
)

// DetectFileType detects file type from filename, falling back to the
// content type.
func DetectFileType(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return FileTypeTXT
	case ".md", ".markdown":
		return FileTypeMD
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".html", ".htm":
		return FileTypeHTML
	}

	switch {
	case strings.HasPrefix(contentType, "text/html"):
		return FileTypeHTML
	case strings.HasPrefix(contentType, "text/csv"):
		return FileTypeCSV
	case strings.HasPrefix(contentType, "text/markdown"):
		return FileTypeMD
	case strings.HasPrefix(contentType, "text/plain"):
		return FileTypeTXT
	}
	return ""
}

// ExtractUploadText returns the cleaned text of an uploaded training file:
// lines trimmed, blank lines dropped.
func ExtractUploadText(filename, contentType string, data []byte) (string, string, error) {
	fileType := DetectFileType(filename, contentType)
	if fileType == "" {
		return "", "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidRequest, filename)
	}
	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("%w: file is not valid UTF-8 text", domain.ErrInvalidRequest)
	}

	if fileType == FileTypeHTML {
		text, err := ExtractHTMLText(bytes.NewReader(data), 0)
		return text, fileType, err
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), fileType, nil
}
