package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// StampLayout is the timestamp format shared by every file one client run
// leaves in the logs directory.
const StampLayout = "20060102_150405"

// SessionFile names a per-run file as <name>.<stamp>.<ext> inside logsDir.
func SessionFile(logsDir, name, ext string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.%s", name, sessionStart.Format(StampLayout), ext))
}

// LogFilePath is the text log of one run.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return SessionFile(logsDir, appName, "log", sessionStart)
}

// BackupFilePath is where the influx manager spills points it could not write.
func BackupFilePath(logsDir string, sessionStart time.Time) string {
	return SessionFile(logsDir, "influx_backup", "log.gz", sessionStart)
}
