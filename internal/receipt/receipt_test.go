package receipt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateAcceptsAllowedTypesUnderLimit(t *testing.T) {
	t.Parallel()
	for _, mimeType := range []string{"image/jpeg", "image/png", "image/webp", "image/heic", "application/pdf"} {
		f := File{Name: "receipt", Size: 24 * 1024 * 1024, MimeType: mimeType}
		if err := Validate(f); err != nil {
			t.Errorf("Validate(%s): %v", mimeType, err)
		}
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	t.Parallel()
	f := File{Name: "big.png", Size: MaxFileSize + 1, MimeType: "image/png"}
	if err := Validate(f); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Validate oversized: got %v, want ErrFileTooLarge", err)
	}
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	t.Parallel()
	f := File{Name: "notes.txt", Size: 10, MimeType: "text/plain"}
	if err := Validate(f); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Validate text/plain: got %v, want ErrUnsupportedType", err)
	}
}

func TestValidateChecksTypeBeforeSize(t *testing.T) {
	t.Parallel()
	// A file failing both checks reports the type problem.
	f := File{Name: "huge.bin", Size: MaxFileSize + 1, MimeType: "application/octet-stream"}
	if err := Validate(f); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Validate: got %v, want ErrUnsupportedType", err)
	}
}

func TestOpenSniffsTypeFromExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "Чек.JPG")
	if err := os.WriteFile(path, []byte("fake jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.MimeType != "image/jpeg" {
		t.Errorf("mime type: got %q, want image/jpeg", f.MimeType)
	}
	if f.Name != "Чек.JPG" {
		t.Errorf("name: got %q, want Чек.JPG", f.Name)
	}
	if f.Size != int64(len("fake jpeg")) {
		t.Errorf("size: got %d, want %d", f.Size, len("fake jpeg"))
	}
}

func TestOpenKeepsExplicitType(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path, "application/pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.MimeType != "application/pdf" {
		t.Errorf("mime type: got %q, want application/pdf", f.MimeType)
	}
}

func TestPreviewEncodesImagesAsDataURI(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "check.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path, "")
	if err != nil {
		t.Fatal(err)
	}
	preview, err := Preview(f)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.HasPrefix(preview, "data:image/png;base64,") {
		t.Errorf("preview prefix: got %q", preview)
	}
}

func TestPreviewSkipsNonImages(t *testing.T) {
	t.Parallel()
	f := File{Name: "check.pdf", MimeType: "application/pdf", Path: "/nonexistent"}
	preview, err := Preview(f)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview != "" {
		t.Errorf("preview: got %q, want empty", preview)
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{2621440, "2.5 MB"},
		{1073741824, "1 GB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d): got %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
