package receipt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const MaxFileSize = 25 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported file type, allowed: JPG, PNG, WebP, PDF, HEIC")
	ErrFileTooLarge    = fmt.Errorf("file too large, maximum %d MB", MaxFileSize/(1024*1024))
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

// File is a user-selected receipt that has not been persisted server-side
// yet. Held exclusively by the balance flow until upload completes or the
// file is discarded.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Path     string
}

// Open stats a local file and sniffs its MIME type from the extension when
// the caller did not supply one.
func Open(path string, mimeType string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if mimeType == "" {
		mimeType = mimeByExtension[strings.ToLower(filepath.Ext(path))]
	}
	return File{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: mimeType,
		Path:     path,
	}, nil
}

// Validate rejects files outside the allowed MIME set or over the size
// limit, with a distinct reason for each case.
func Validate(f File) error {
	if !allowedMimeTypes[f.MimeType] {
		return ErrUnsupportedType
	}
	if f.Size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// IsAllowedType reports whether a MIME type is accepted as a receipt.
func IsAllowedType(mimeType string) bool {
	return allowedMimeTypes[mimeType]
}

func IsImage(f File) bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// Preview reads an image file and encodes it as a data URI for display.
// Non-image files (PDF) yield an empty preview, not an error.
func Preview(f File) (string, error) {
	if !IsImage(f) {
		return "", nil
	}
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return "data:" + f.MimeType + ";base64," + base64.StdEncoding.EncodeToString(content), nil
}

// Content reads the file bytes for upload.
func Content(f File) ([]byte, error) {
	return os.ReadFile(f.Path)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count using binary units with two decimals,
// picking the largest unit where the value stays >= 1.
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	formatted := strconv.FormatFloat(value, 'f', 2, 64)
	formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
	return formatted + " " + sizeUnits[unit]
}
