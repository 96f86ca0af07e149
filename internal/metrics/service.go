package metrics

import (
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

type Service struct{ st *store.MemoryStore }

func NewService(st *store.MemoryStore) *Service { return &Service{st: st} }

// QueryDaily returns daily KPI rows filtered by from/to (YYYY-MM-DD) and
// optional min_clicks, paginated with limit/offset.
func (s *Service) QueryDaily(v url.Values) ([]models.Metrics, error) {
	from, err := parseDateParam(v.Get("from"))
	if err != nil {
		return nil, err
	}
	to, err := parseDateParam(v.Get("to"))
	if err != nil {
		return nil, err
	}
	minClicks, _ := strconv.ParseFloat(v.Get("min_clicks"), 64)
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	recs := s.st.Query(from, to, func(r models.DailyRecord) bool {
		return minClicks <= 0 || (!r.ClicksMissing() && r.Clicks >= minClicks)
	})

	rows := ToMetrics(recs)
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return paginate(rows, limit, offset), nil
}

// ToMetrics derives CTR, CPC, CVR, CPA and ROAS; ratios with a zero
// denominator are 0. Missing clicks are reported as 0.
func ToMetrics(recs []models.DailyRecord) []models.Metrics {
	rows := make([]models.Metrics, 0, len(recs))
	for _, r := range recs {
		clicks := r.Clicks
		if math.IsNaN(clicks) {
			clicks = 0
		}
		m := models.Metrics{
			Date:            r.Date.Format("2006-01-02"),
			Impressions:     r.Impressions,
			Clicks:          clicks,
			Conversions:     r.Conversions,
			Cost:            round2(r.Cost),
			ConversionValue: round2(r.ConversionValue),
			AvgPosition:     round2(r.AvgPosition),
		}
		if r.Impressions > 0 {
			m.CTR = round3(clicks / float64(r.Impressions))
		}
		if clicks > 0 {
			m.CPC = round3(r.Cost / clicks)
			m.CVR = round3(float64(r.Conversions) / clicks)
		}
		if r.Conversions > 0 {
			m.CPA = round2(r.Cost / float64(r.Conversions))
		}
		if r.Cost > 0 {
			m.ROAS = round2(r.ConversionValue / r.Cost)
		}
		rows = append(rows, m)
	}
	return rows
}

type badParam string

func (b badParam) Error() string { return "bad date parameter " + strconv.Quote(string(b)) }

// IsBadParam reports whether err came from an unparsable query parameter.
func IsBadParam(err error) bool {
	_, ok := err.(badParam)
	return ok
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, badParam(s)
	}
	return t, nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
