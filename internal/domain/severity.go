package domain

import "strings"

// Severity is a qualitative CVSS rating.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Embed colours keyed by severity.
const (
	ColorDarkRed = 0x8B0000
	ColorRed     = 0xFF0000
	ColorOrange  = 0xFFA500
	ColorGreen   = 0x008000
	ColorGray    = 0x808080
)

// ParseSeverity maps a label to a known severity. Unrecognized labels map to
// SeverityUnknown with ok=false.
func ParseSeverity(label string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(label))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	default:
		return SeverityUnknown, false
	}
}

// Color is defined for every value, including a nil receiver.
func (s *Severity) Color() int {
	if s == nil {
		return ColorGray
	}
	switch *s {
	case SeverityCritical:
		return ColorDarkRed
	case SeverityHigh:
		return ColorRed
	case SeverityMedium:
		return ColorOrange
	case SeverityLow:
		return ColorGreen
	default:
		return ColorGray
	}
}

// SeverityInfo holds the scoring data chosen for an advisory.
type SeverityInfo struct {
	Score         *float64
	Severity      *Severity
	Vector        string
	SchemaVersion string
}

// SeverityOf returns the severity pointer of info, tolerating nil.
func SeverityOf(info *SeverityInfo) *Severity {
	if info == nil {
		return nil
	}
	return info.Severity
}
