package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
)

var ErrMissingColumn = errors.New("csv: required column missing")

var dateLayouts = []string{"2006-01-02", "2006/01/02", "1/2/2006", "01/02/2006", time.RFC3339}

// column aliases keyed by normalized header
var headerAliases = map[string]string{
	"date":                 "date",
	"day":                  "date",
	"impressions":          models.FieldImpressions,
	"impr":                 models.FieldImpressions,
	"clicks":               models.FieldClicks,
	"conversions":          models.FieldConversions,
	"cost":                 models.FieldCost,
	"totalconversionvalue": models.FieldConversionValue,
	"totalconvvalue":       models.FieldConversionValue,
	"conversionvalue":      models.FieldConversionValue,
	"averageposition":      models.FieldAvgPosition,
	"avgposition":          models.FieldAvgPosition,
	"avgpos":               models.FieldAvgPosition,
}

func LoadCSVFile(path string) ([]models.DailyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads one row per day. Empty clicks cells become NaN; other empty
// numeric cells become zero. Rows are returned ordered by date.
func ParseCSV(r io.Reader) ([]models.DailyRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		if f, ok := headerAliases[normHeader(h)]; ok {
			if _, dup := idx[f]; !dup {
				idx[f] = i
			}
		}
	}
	for _, req := range []string{"date", models.FieldClicks, models.FieldConversions} {
		if _, ok := idx[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}

	var out []models.DailyRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		cell := func(f string) string {
			i, ok := idx[f]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if cell("date") == "" {
			continue
		}
		d, err := parseDate(cell("date"))
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		rec := models.DailyRecord{Date: d, Clicks: math.NaN()}
		var perr error
		num := func(f string) float64 {
			v, err := parseNumber(cell(f))
			if err != nil && perr == nil {
				perr = fmt.Errorf("csv: line %d column %s: %w", line, f, err)
			}
			return v
		}
		if s := cell(models.FieldClicks); s != "" {
			rec.Clicks = maxf(num(models.FieldClicks))
		}
		rec.Impressions = max0(int(num(models.FieldImpressions)))
		rec.Conversions = max0(int(num(models.FieldConversions)))
		rec.Cost = maxf(num(models.FieldCost))
		rec.ConversionValue = maxf(num(models.FieldConversionValue))
		rec.AvgPosition = maxf(num(models.FieldAvgPosition))
		if perr != nil {
			return nil, perr
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func normHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseDate(s string) (time.Time, error) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return dayUTC(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer(",", "", "$", "", "%", "").Replace(s)
	if s == "" || s == "--" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
