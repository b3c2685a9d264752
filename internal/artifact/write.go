package artifact

import (
	"os"
	"path/filepath"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Destinations are the two output paths of a run.
type Destinations struct {
	TestPath string
	DocsPath string
}

// Writer persists artifacts byte-for-byte. The two writes are independent:
// if the documentation write fails, the test file stays on disk.
type Writer struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

// NewWriter returns a writer using 0755 directories and 0644 files.
func NewWriter() *Writer {
	return &Writer{DirPerm: 0755, FilePerm: 0644}
}

// Write stores the test file first, then the documentation.
func (w *Writer) Write(a types.ParsedArtifacts, dest Destinations) error {
	if err := w.writeFile(dest.TestPath, a.TestCode); err != nil {
		return err
	}
	return w.writeFile(dest.DocsPath, a.DocumentationMarkdown)
}

func (w *Writer) writeFile(path, content string) error {
	dirPerm, filePerm := w.DirPerm, w.FilePerm
	if dirPerm == 0 {
		dirPerm = 0755
	}
	if filePerm == 0 {
		filePerm = 0644
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			logging.ArtifactError("failed to create %s: %v", dir, err)
			return &types.WriteError{Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		logging.ArtifactError("failed to write %s: %v", path, err)
		return &types.WriteError{Path: path, Err: err}
	}
	logging.Artifact("wrote %s (%d bytes)", path, len(content))
	return nil
}
