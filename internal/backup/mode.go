package backup

import "fmt"

// Mode is the backup mode: full, incremental, or differential.
type Mode string

const (
	ModeFull         Mode = "full"
	ModeIncremental  Mode = "incremental"
	ModeDifferential Mode = "differential"
)

// ParseMode validates a raw mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental, ModeDifferential:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown backup mode: %q", s)
	}
}

// FolderPrefix returns the destination subfolder prefix for this mode.
// A full run produces "backup_YYYYMMDD_HHMMSS"; incremental and differential
// runs use their mode name as the prefix.
func (m Mode) FolderPrefix() string {
	if m == ModeFull {
		return "backup"
	}
	return string(m)
}
