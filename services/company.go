package services

import (
	"encoding/json"

	"corpanalyst/models"
)

// fallbackTickerLength is how many trailing ISIN characters are retried when
// the full identifier finds nothing. It drops the country prefix, leaving the
// national security number and check digit.
const fallbackTickerLength = 9

// ExtractCompany reads the first quote of a lookup response. It returns false
// when neither "quotes" nor "results" has an entry.
func ExtractCompany(raw []byte, isin string) (*models.CompanyInfo, bool) {
	var resp models.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}

	var quote models.Quote
	switch {
	case len(resp.Quotes) > 0:
		quote = resp.Quotes[0]
	case len(resp.Results) > 0:
		quote = resp.Results[0]
	default:
		return nil, false
	}

	return &models.CompanyInfo{
		CompanyName: companyName(quote),
		Ticker:      quote.Symbol,
		ISIN:        isin,
	}, true
}

func companyName(q models.Quote) string {
	for _, name := range []string{q.LongName, q.ShortName, q.Name, q.DisplayName, q.Title} {
		if name != "" {
			return name
		}
	}
	return ""
}

// PotentialTicker returns the trailing part of an ISIN used for the retry lookup
func PotentialTicker(isin string) string {
	if len(isin) <= fallbackTickerLength {
		return isin
	}
	return isin[len(isin)-fallbackTickerLength:]
}
