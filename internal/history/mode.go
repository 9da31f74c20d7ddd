package history

import (
	"fmt"
	"strings"
)

// Mode selects the remote source a history request is served from.
type Mode int

const (
	// ModeCREST is the legacy CREST market history endpoint.
	ModeCREST Mode = iota
	// ModeESI is the ESI market history endpoint.
	ModeESI
	// ModeEMD is eve-marketdata.com item_history2.
	ModeEMD
)

// EMDDateLayout is the timestamp shape EMD consumers expect in the date column.
const EMDDateLayout = "2006-01-02 15:04:05"

func (m Mode) String() string {
	switch m {
	case ModeCREST:
		return "crest"
	case ModeESI:
		return "esi"
	case ModeEMD:
		return "emd"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DateLayout returns the date layout series from this mode are rendered with.
func (m Mode) DateLayout() string {
	if m == ModeEMD {
		return EMDDateLayout
	}
	return "2006-01-02"
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crest":
		return ModeCREST, nil
	case "esi":
		return ModeESI, nil
	case "emd":
		return ModeEMD, nil
	default:
		return 0, fmt.Errorf("unknown history source %q", s)
	}
}
