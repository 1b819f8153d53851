package trial

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"colorsweep/internal/domain"
)

// Term is one search term of an experiment's terms file, with the regions
// it should be gathered from and any extra dimension metadata columns.
type Term struct {
	Query    string            `json:"query"`
	Regions  []string          `json:"regions,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

const (
	queryColumn  = "search_term"
	regionColumn = "region"
)

// TermsPath is where an experiment's terms file lives under the
// configured terms directory.
func TermsPath(termsDir, experimentName string) string {
	return filepath.Join(termsDir, experimentName+".csv")
}

// LoadTerms reads an experiment terms CSV. The search_term column is
// required; the region column holds space-separated region names and is
// aggregated across rows sharing a term; every other column becomes
// dimension metadata. First-appearance order of terms is preserved.
func LoadTerms(path string) ([]Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open terms file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read terms header: %w", err)
	}
	// tolerate a UTF-8 BOM on the first column name
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	queryIdx, regionIdx := -1, -1
	for i, col := range header {
		switch col {
		case queryColumn:
			queryIdx = i
		case regionColumn:
			regionIdx = i
		}
	}
	if queryIdx < 0 {
		return nil, fmt.Errorf("terms file %s is missing the %q column: %w",
			path, queryColumn, domain.ErrNoQueries)
	}

	var order []string
	byQuery := make(map[string]*Term)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read terms rows: %w", err)
	}
	for _, row := range rows {
		query := row[queryIdx]
		term, seen := byQuery[query]
		if !seen {
			term = &Term{Query: query, Metadata: map[string]string{}}
			for i, col := range header {
				if i == queryIdx || i == regionIdx {
					continue
				}
				term.Metadata[col] = row[i]
			}
			byQuery[query] = term
			order = append(order, query)
		}
		if regionIdx >= 0 {
			for _, region := range strings.Fields(row[regionIdx]) {
				term.Regions = append(term.Regions, strings.ToLower(region))
			}
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("terms file %s has no rows: %w", path, domain.ErrNoQueries)
	}

	terms := make([]Term, len(order))
	for i, query := range order {
		terms[i] = *byQuery[query]
	}
	return terms, nil
}
