package domain

import (
	"regexp"
	"strings"
	"time"
)

var cveIDExpr = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

// AdvisoryItem is a single entry fetched from the advisory feed.
// ID is the canonical link and is compared byte-for-byte.
type AdvisoryItem struct {
	ID          string
	CVEID       string
	Title       string
	Link        string
	PublishedAt string
	Published   *time.Time
	Description string
}

// ExtractCVEID finds the first CVE identifier in the given candidates, in order.
func ExtractCVEID(candidates ...string) string {
	for _, c := range candidates {
		if id := cveIDExpr.FindString(strings.ToUpper(c)); id != "" {
			return id
		}
	}
	return ""
}

// DisplayID is what a human sees as the item's name.
func (a AdvisoryItem) DisplayID() string {
	if a.CVEID != "" {
		return a.CVEID
	}
	return a.Link
}

// LastSeenRecord is the singleton state row.
type LastSeenRecord struct {
	ID        string
	UpdatedAt time.Time
}

// SearchHit pairs an advisory returned by a search with the scoring data
// that came along with it.
type SearchHit struct {
	Item     AdvisoryItem
	Severity *SeverityInfo
}
