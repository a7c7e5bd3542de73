package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mangawatch/pkg/models"
)

// FileErrorSink writes a run's failures to a plain-text artifact under Dir
// so clients can download the full error log instead of getting one
// interruption per failed title.
type FileErrorSink struct {
	Dir string
}

func NewFileErrorSink(dataDir string) *FileErrorSink {
	return &FileErrorSink{Dir: filepath.Join(dataDir, "logs")}
}

func (s *FileErrorSink) WriteReport(failures []models.UpdateFailure) (string, error) {
	if len(failures) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure log dir: %w", err)
	}

	name := fmt.Sprintf("update-errors-%s-%s.log",
		time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(s.Dir, name)

	var b strings.Builder
	for _, f := range failures {
		fmt.Fprintf(&b, "%s (%s): %s\n", f.Title.Name, f.Title.SourceID, f.Message)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write error log: %w", err)
	}
	return path, nil
}
