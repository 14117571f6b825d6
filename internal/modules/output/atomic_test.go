package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.txt")

	size, err := replaceFile(target, func(f *os.File) error {
		_, err := f.WriteString("VR001,IT\n")
		return err
	})
	if err != nil {
		t.Fatalf("replaceFile() error = %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if size != info.Size() || size != int64(len("VR001,IT\n")) {
		t.Errorf("size = %d, file has %d bytes", size, info.Size())
	}
	assertNoTempFiles(t, filepath.Dir(target))
}

func TestReplaceFile_FailureKeepsTarget(t *testing.T) {
	tests := []struct {
		name string
		fill func(*os.File) error
	}{
		{"fill error", func(*os.File) error { return errors.New("disk full") }},
		{"file closed by fill", func(f *os.File) error {
			_, _ = f.WriteString("partial")
			return f.Close()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			target := filepath.Join(dir, "out.txt")
			if err := os.WriteFile(target, []byte("previous"), 0o644); err != nil {
				t.Fatal(err)
			}

			size, err := replaceFile(target, tt.fill)
			if err == nil {
				t.Fatal("expected an error")
			}
			if size != 0 {
				t.Errorf("size = %d on failure", size)
			}
			data, _ := os.ReadFile(target)
			if string(data) != "previous" {
				t.Errorf("target changed to %q", data)
			}
			assertNoTempFiles(t, dir)
		})
	}
}
