package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetFileExtension(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"photo.jpg", "jpg"},
		{"IMG_0001.HEIC", "heic"},
		{"path/to/photo.png", "png"},
		{"noext", ""},
	}

	for _, test := range tests {
		if got := GetFileExtension(test.input); got != test.expected {
			t.Errorf("GetFileExtension(%s) = %s, expected %s", test.input, got, test.expected)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.heic", "d.HEIF", "e.webp"} {
		if !IsImageFile(name) {
			t.Errorf("%s should be an image file", name)
		}
	}
	for _, name := range []string{"a.pdf", "b.txt", "c"} {
		if IsImageFile(name) {
			t.Errorf("%s should not be an image file", name)
		}
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	got := GenerateOutputFilename("in/photo.heic", "out", "", "_passport", "jpg")
	if want := filepath.Join("out", "photo_passport.jpg"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	got = GenerateOutputFilename("photo.png", "out", "x_", "", "")
	if want := filepath.Join("out", "x_photo.jpg"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"STUDENT_MÜLLER_ANNA.png", "STUDENT_MÜLLER_ANNA.png"},
		{"TEACHER_VAN DER BERG_JAN.png", "TEACHER_VAN_DER_BERG_JAN.png"},
		{"a/b\\c:d", "a_b_c_d"},
		{" .hidden. ", "hidden"},
	}

	for _, test := range tests {
		if got := SanitizeFilename(test.input); got != test.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{5*1024*1024 + 1, "5.0 MB"},
	}

	for _, test := range tests {
		if got := FormatFileSize(test.input); got != test.expected {
			t.Errorf("FormatFileSize(%d) = %s, expected %s", test.input, got, test.expected)
		}
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("a directory is not a file")
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Error("expected file to exist")
	}
}
