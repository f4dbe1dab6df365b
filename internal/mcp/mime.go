package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps indexed file extensions to MIME types.
var mimeTypes = map[string]string{
	".txt":  "text/plain",
	".log":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".json": "application/json",
	".xml":  "text/xml",
	".yaml": "text/x-yaml",
	".yml":  "text/x-yaml",
	".sql":  "text/x-sql",
	".sh":   "text/x-sh",

	".go":   "text/x-go",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".java": "text/x-java",
	".c":    "text/x-c",
	".cpp":  "text/x-c++",
	".cs":   "text/x-csharp",
	".rb":   "text/x-ruby",
	".php":  "text/x-php",

	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// MimeTypeForPath returns the MIME type for a file path, "text/plain" when unknown.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "text/plain"
}
