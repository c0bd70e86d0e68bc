// Package dataset loads labelled consumer complaints.
package dataset

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// Category codes.
const (
	CreditReporting = 0
	DebtCollection  = 1
	ConsumerLoan    = 2
	Mortgage        = 3
)

// categoryCodes maps the product strings of the source data onto codes.
// Both spellings of the credit reporting product map to the same code.
var categoryCodes = map[string]int{
	"Credit reporting, credit repair services, or other personal consumer reports": CreditReporting,
	"Credit reporting, repair, or other":                                           CreditReporting,
	"Debt collection":                                                              DebtCollection,
	"Consumer Loan":                                                                ConsumerLoan,
	"Mortgage":                                                                     Mortgage,
}

var categoryNames = []string{
	CreditReporting: "Credit reporting",
	DebtCollection:  "Debt collection",
	ConsumerLoan:    "Consumer Loan",
	Mortgage:        "Mortgage",
}

// CategoryCode returns the code for a product string.
func CategoryCode(product string) (int, bool) {
	code, ok := categoryCodes[product]
	return code, ok
}

// CategoryName returns the display name of a category code.
func CategoryName(code int) string {
	if code < 0 || code >= len(categoryNames) {
		return fmt.Sprintf("Category %d", code)
	}
	return categoryNames[code]
}

// Categories returns every category code in ascending order.
func Categories() []int {
	out := make([]int, len(categoryNames))
	for i := range out {
		out[i] = i
	}
	return out
}

// RawRecord is one complaint with its category code.
type RawRecord struct {
	Text     string `json:"text"`
	Category int    `json:"category"`
}

// ProcessedRecord is a RawRecord plus its normalized text.
type ProcessedRecord struct {
	RawRecord
	ProcessedText string `json:"processed_text"`
}

// Options controls CSV loading.
type Options struct {
	TextColumn     string
	CategoryColumn string
	// SampleSize limits the number of data rows read, before any filtering.
	// Zero reads every row.
	SampleSize int
}

// OptionsFromConfig builds loader options from the data configuration.
func OptionsFromConfig(cfg config.DataConfig) Options {
	return Options{
		TextColumn:     cfg.TextColumn,
		CategoryColumn: cfg.CategoryColumn,
		SampleSize:     cfg.SampleSize,
	}
}

// Stats summarises a load.
type Stats struct {
	RowsRead    int `json:"rows_read"`
	Unmapped    int `json:"unmapped"`
	MissingText int `json:"missing_text"`
	Kept        int `json:"kept"`
}

// LoadCSV reads records from the CSV file at path.
func LoadCSV(path string, opts Options) ([]RawRecord, *Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil, errors.NotFoundError("dataset " + path)
		}
		return nil, nil, errors.Wrap(errors.CodeInternal, "failed to open dataset", err)
	}
	defer f.Close()

	return ReadCSV(f, opts)
}

// ReadCSV reads records from r. The first row must be a header naming the
// text and category columns. Rows with an unknown category or an empty
// narrative are dropped.
func ReadCSV(r io.Reader, opts Options) ([]RawRecord, *Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, errors.ValidationError("dataset is empty")
		}
		return nil, nil, errors.Wrap(errors.CodeValidation, "failed to read dataset header", err)
	}

	textIdx, catIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case opts.TextColumn:
			textIdx = i
		case opts.CategoryColumn:
			catIdx = i
		}
	}
	if textIdx < 0 {
		return nil, nil, errors.ValidationError(fmt.Sprintf("dataset has no %q column", opts.TextColumn))
	}
	if catIdx < 0 {
		return nil, nil, errors.ValidationError(fmt.Sprintf("dataset has no %q column", opts.CategoryColumn))
	}

	stats := &Stats{}
	var records []RawRecord
	for opts.SampleSize <= 0 || stats.RowsRead < opts.SampleSize {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(errors.CodeValidation,
				fmt.Sprintf("failed to read dataset row %d", stats.RowsRead+1), err)
		}
		stats.RowsRead++

		code, ok := CategoryCode(field(row, catIdx))
		if !ok {
			stats.Unmapped++
			continue
		}
		text := field(row, textIdx)
		if strings.TrimSpace(text) == "" {
			stats.MissingText++
			continue
		}

		records = append(records, RawRecord{Text: text, Category: code})
	}
	stats.Kept = len(records)

	return records, stats, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// Texts returns the narrative of every record.
func Texts(records []RawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text
	}
	return out
}

// Distribution counts records per category.
func Distribution(records []RawRecord) map[int]int {
	dist := make(map[int]int)
	for _, r := range records {
		dist[r.Category]++
	}
	return dist
}
