package nvd

import (
	"strings"
	"time"

	"CVEWatch/internal/domain"
)

// DetailURL is the human-facing page for a CVE.
const DetailURL = "https://nvd.nist.gov/vuln/detail/"

type response struct {
	TotalResults    int             `json:"totalResults"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	CVE cve `json:"cve"`
}

type cve struct {
	ID           string        `json:"id"`
	Published    string        `json:"published"`
	Descriptions []description `json:"descriptions"`
	Metrics      metricSet     `json:"metrics"`
}

type description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type metricSet struct {
	V40 []metric `json:"cvssMetricV40"`
	V31 []metric `json:"cvssMetricV31"`
	V30 []metric `json:"cvssMetricV30"`
	V2  []metric `json:"cvssMetricV2"`
}

type metric struct {
	Source       string   `json:"source"`
	Type         string   `json:"type"`
	CVSSData     cvssData `json:"cvssData"`
	BaseSeverity string   `json:"baseSeverity"`
}

type cvssData struct {
	Version      string   `json:"version"`
	VectorString string   `json:"vectorString"`
	BaseScore    *float64 `json:"baseScore"`
	BaseSeverity string   `json:"baseSeverity"`
}

// selectSeverity picks the newest CVSS schema present, preferring the
// Primary entry within it. Nil when no metrics are present.
func selectSeverity(set metricSet) *domain.SeverityInfo {
	tiers := []struct {
		version string
		entries []metric
	}{
		{"4.0", set.V40},
		{"3.1", set.V31},
		{"3.0", set.V30},
		{"2.0", set.V2},
	}

	for _, tier := range tiers {
		if len(tier.entries) == 0 {
			continue
		}
		chosen := tier.entries[0]
		for _, m := range tier.entries {
			if strings.EqualFold(m.Type, "Primary") {
				chosen = m
				break
			}
		}
		return toSeverityInfo(chosen, tier.version)
	}
	return nil
}

func toSeverityInfo(m metric, fallbackVersion string) *domain.SeverityInfo {
	info := &domain.SeverityInfo{
		Vector:        m.CVSSData.VectorString,
		SchemaVersion: m.CVSSData.Version,
	}
	if info.SchemaVersion == "" {
		info.SchemaVersion = fallbackVersion
	}
	if m.CVSSData.BaseScore != nil {
		score := *m.CVSSData.BaseScore
		info.Score = &score
	}

	// v2 carries the label next to cvssData rather than inside it.
	label := m.CVSSData.BaseSeverity
	if label == "" {
		label = m.BaseSeverity
	}
	if label != "" {
		sev, _ := domain.ParseSeverity(label)
		info.Severity = &sev
	}
	return info
}

func englishDescription(list []description) string {
	for _, d := range list {
		if strings.EqualFold(d.Lang, "en") {
			return d.Value
		}
	}
	if len(list) > 0 {
		return list[0].Value
	}
	return ""
}

func (c cve) toHit() domain.SearchHit {
	item := domain.AdvisoryItem{
		ID:          DetailURL + c.ID,
		CVEID:       c.ID,
		Title:       c.ID,
		Link:        DetailURL + c.ID,
		PublishedAt: c.Published,
		Description: englishDescription(c.Descriptions),
	}
	if ts, err := time.Parse("2006-01-02T15:04:05.000", c.Published); err == nil {
		item.Published = &ts
	}
	return domain.SearchHit{Item: item, Severity: selectSeverity(c.Metrics)}
}
