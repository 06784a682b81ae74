package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

var header = []string{"address", "secret", "status"}

// WriteCSV writes identities as CRLF-terminated CSV with a header row.
func WriteCSV(w io.Writer, identities []entities.Identity) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, identity := range identities {
		if err := writer.Write([]string{
			identity.Address,
			identity.Secret,
			string(identity.Status),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FileName is the timestamped file name used for an identity export.
func FileName(prefix string, at time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	return fmt.Sprintf("%s-%s.csv", prefix, stamp)
}

// FileExporter writes each replenishment batch to its own file under Dir.
type FileExporter struct {
	Dir    string
	Clock  ports.Clock
	Logger *slog.Logger
}

func (e FileExporter) Export(_ context.Context, identities []entities.Identity) (string, error) {
	if len(identities) == 0 {
		return "", nil
	}
	dir := strings.TrimSpace(e.Dir)
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	now := time.Now()
	if e.Clock != nil {
		now = e.Clock.Now()
	}
	path := filepath.Join(dir, FileName("identities", now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(file, identities); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("identity export written",
		"event", "disbursement_identity_export_written",
		"module", "treasury/disbursement-service",
		"layer", "adapter",
		"path", path,
		"count", len(identities),
	)
	return path, nil
}

var _ ports.IdentityExporter = FileExporter{}
