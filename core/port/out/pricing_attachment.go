package out

import "context"

// AttachmentParser decodes raw attachment bytes into rows of cells. Format
// decoding only; what the rows mean is the extractor's business.
type AttachmentParser interface {
	// ParseTabular decodes a spreadsheet (xlsx/xls/csv) into rows.
	ParseTabular(data []byte, ext string) ([][]string, error)
}

// SpreadsheetLinkFetcher finds shared-spreadsheet URLs in email bodies and
// fetches their tabular text.
type SpreadsheetLinkFetcher interface {
	FindLinks(text string) []string
	Fetch(ctx context.Context, url string, account string) (string, error)
}
