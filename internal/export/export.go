package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sugawarayuuta/sonnet"

	"dexpnl/internal/model"
)

const (
	AddressesFile   = "top_performers.txt"
	RankingFile     = "top_performers_with_profits_and_volumes.csv"
	VolumeUnitFile  = "top_performers_volume_in_unit.csv"
	CorrelationFile = "volume_volatility.csv"
)

// Exporter writes ranking results under a single output directory.
type Exporter struct {
	logger *slog.Logger
	dir    string
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(logger *slog.Logger, dir string) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, dir: dir}
}

// WriteAddresses writes one address per line in rank order.
func (e *Exporter) WriteAddresses(perfs []model.UserPerformance) (string, error) {
	var b strings.Builder
	for _, p := range perfs {
		b.WriteString(p.UserAddress)
		b.WriteByte('\n')
	}
	return e.write(AddressesFile, len(perfs), func(f *os.File) error {
		_, err := f.WriteString(b.String())
		return err
	})
}

// WriteRanking writes address, profit and the per-token volume map as JSON.
func (e *Exporter) WriteRanking(perfs []model.UserPerformance) (string, error) {
	return e.write(RankingFile, len(perfs), func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write([]string{"user_address", "profit_in_usdt", "volume_traded"}); err != nil {
			return err
		}
		for _, p := range perfs {
			volumes, err := sonnet.Marshal(p.Volumes)
			if err != nil {
				return fmt.Errorf("encoding volumes for %s: %w", p.UserAddress, err)
			}
			if err := w.Write([]string{p.UserAddress, p.RealizedProfit.String(), string(volumes)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// WriteVolumeInUnit writes one row per user with a column per token.
func (e *Exporter) WriteVolumeInUnit(addresses []string, volumes []map[string]float64) (string, error) {
	tokenSet := make(map[string]struct{})
	for _, v := range volumes {
		for token := range v {
			tokenSet[token] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(tokenSet))
	for token := range tokenSet {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	return e.write(VolumeUnitFile, len(addresses), func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(append([]string{"user_address"}, tokens...)); err != nil {
			return err
		}
		for i, addr := range addresses {
			row := []string{addr}
			for _, token := range tokens {
				row = append(row, strconv.FormatFloat(volumes[i][token], 'f', -1, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// WriteCorrelation writes the daily volume joined with volatility by date.
func (e *Exporter) WriteCorrelation(volume, volatility []model.DailyPoint) (string, error) {
	vol := make(map[string]float64, len(volatility))
	for _, p := range volatility {
		vol[p.Date] = p.Value
	}
	return e.write(CorrelationFile, len(volume), func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write([]string{"date", "total_volume", "volatility"}); err != nil {
			return err
		}
		for _, p := range volume {
			v, ok := vol[p.Date]
			cell := ""
			if ok {
				cell = strconv.FormatFloat(v, 'f', -1, 64)
			}
			if err := w.Write([]string{p.Date, strconv.FormatFloat(p.Value, 'f', -1, 64), cell}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func (e *Exporter) write(name string, rows int, fill func(*os.File) error) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	e.logger.Info("Exported", "file", path, "rows", rows)
	return path, nil
}
