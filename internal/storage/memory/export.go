package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/OCAP2/arena/internal/storage/memory/export/v1"
)

// exportJSON writes the match data to a (optionally gzipped) JSON file.
// Callers hold the write lock.
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.MatchData{
		Info:         b.info,
		Players:      b.players,
		Order:        b.order,
		EndTime:      b.endTime,
		Shots:        b.shots,
		Hits:         b.hits,
		Eliminations: b.eliminations,
		Respawns:     b.respawns,
		Chat:         b.chat,
		Result:       b.result,
	})

	code := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(b.info.Code)
	timestamp := b.info.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", code, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)
	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func writeExport(path string, data v1.Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
