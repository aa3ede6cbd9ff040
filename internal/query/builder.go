package query

import (
	"net/url"
	"strconv"
	"strings"

	"CVEWatch/internal/domain"
)

// NVD CVE API 2.0 parameter names.
const (
	ParamKeyword        = "keywordSearch"
	ParamSeverity       = "cvssV3Severity"
	ParamPubStartDate   = "pubStartDate"
	ParamPubEndDate     = "pubEndDate"
	ParamResultsPerPage = "resultsPerPage"
)

const (
	startOfDaySuffix = "T00:00:00.000"
	endOfDaySuffix   = "T23:59:59.999"
	dateLayout       = "2006-01-02"
)

type param struct {
	key   string
	value string
}

// Build renders spec into an NVD query string. Parameters appear in a fixed
// order: keyword, severity, start date, end date, page size. When no filter
// was set the raw question becomes the keyword.
func Build(spec domain.QuerySpec) string {
	params := make([]param, 0, 5)

	if spec.Keyword != nil && strings.TrimSpace(*spec.Keyword) != "" {
		params = append(params, param{ParamKeyword, strings.TrimSpace(*spec.Keyword)})
	}
	if spec.Severity != nil && *spec.Severity != domain.SeverityUnknown && *spec.Severity != "" {
		params = append(params, param{ParamSeverity, strings.ToUpper(string(*spec.Severity))})
	}
	if spec.PublishedFrom != nil {
		params = append(params, param{ParamPubStartDate, spec.PublishedFrom.Format(dateLayout) + startOfDaySuffix})
	}
	if spec.PublishedTo != nil {
		params = append(params, param{ParamPubEndDate, spec.PublishedTo.Format(dateLayout) + endOfDaySuffix})
	}

	if len(params) == 0 && strings.TrimSpace(spec.RawQuestion) != "" {
		params = append(params,
			param{ParamKeyword, strings.TrimSpace(spec.RawQuestion)},
			param{ParamResultsPerPage, strconv.Itoa(domain.DefaultMaxResults)},
		)
		return encode(params)
	}

	params = append(params, param{ParamResultsPerPage, strconv.Itoa(domain.ClampMaxResults(spec.MaxResults))})
	return encode(params)
}

func encode(params []param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
