// internal/helper/file_upload.go
package helper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	DirPerm  = 0755
	FilePerm = 0644
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)

// SanitizeFilename removes path components and characters unsafe on common filesystems.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	filename = strings.ReplaceAll(filename, "..", "")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." || filename == "/" {
		return "file"
	}
	return filename
}

// CreateDirectory ensures dir and its parents exist.
func CreateDirectory(dir string) error {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// SaveFile copies src into destPath.
func SaveFile(src io.Reader, destPath string) error {
	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FilePerm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// UniqueFilename appends -1, -2, ... before the extension until name is unused in taken.
func UniqueFilename(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
