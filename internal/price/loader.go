package price

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dexpnl/internal/model"
)

// ErrMalformed is returned when the price table cannot be parsed.
var ErrMalformed = errors.New("malformed price table")

// Day-first layouts come before ISO; "2/1/2006" also accepts zero-padded values.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	model.DateLayout,
}

// ParseDate parses a day-first or ISO date into model.DateLayout form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// ParsePrice strips thousands separators and parses a positive decimal.
func ParsePrice(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	p, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable price %q", s)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %q", s)
	}
	return p, nil
}

// LoadCSV reads Date, token and Price columns from r. Extra columns are ignored.
func LoadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	dateCol, symCol, priceCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			dateCol = i
		case "token", "symbol":
			symCol = i
		case "price":
			priceCol = i
		}
	}
	if dateCol < 0 || symCol < 0 || priceCol < 0 {
		return nil, fmt.Errorf("%w: header %v lacks Date, token or Price", ErrMalformed, header)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if len(row) <= max(dateCol, symCol, priceCol) {
			return nil, fmt.Errorf("%w: line %d: expected %d columns, got %d", ErrMalformed, line, len(header), len(row))
		}
		date, err := ParseDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		p, err := ParsePrice(row[priceCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		records = append(records, Record{
			Date:   date,
			Symbol: strings.ToUpper(strings.TrimSpace(row[symCol])),
			Price:  p,
		})
	}
	return records, nil
}

// LoadOracleFile builds an Oracle from the CSV file at path.
func LoadOracleFile(path string, opts ...Option) (*Oracle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening price table %s: %w", path, err)
	}
	defer f.Close()

	records, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewOracle(records, opts...), nil
}
