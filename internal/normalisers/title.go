package normalisers

import (
	"path/filepath"
	"strings"
)

// TitleFromURI derives a readable title from a file name.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// MetadataTitle returns metadata["title"] when it is a non-empty string.
func MetadataTitle(metadata map[string]any) string {
	if title, ok := metadata["title"].(string); ok {
		return strings.TrimSpace(title)
	}
	return ""
}

// CopyMetadata creates a shallow copy of metadata with room for format keys.
func CopyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+2)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
