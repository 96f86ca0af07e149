package models

import (
	"math"
	"time"
)

// DailyRecord is one calendar day of campaign performance.
// Clicks is NaN when the source row had no value.
type DailyRecord struct {
	Date            time.Time
	Impressions     int
	Clicks          float64
	Conversions     int
	Cost            float64
	ConversionValue float64
	AvgPosition     float64
}

func (r DailyRecord) ClicksMissing() bool { return math.IsNaN(r.Clicks) }

// Field names accepted by Series and the analysis endpoints.
const (
	FieldImpressions     = "impressions"
	FieldClicks          = "clicks"
	FieldConversions     = "conversions"
	FieldCost            = "cost"
	FieldConversionValue = "conversion_value"
	FieldAvgPosition     = "avg_position"
)

var Fields = []string{FieldImpressions, FieldClicks, FieldConversions, FieldCost, FieldConversionValue, FieldAvgPosition}

// Value returns the named field as float64; ok is false for an unknown field.
func (r DailyRecord) Value(field string) (float64, bool) {
	switch field {
	case FieldImpressions:
		return float64(r.Impressions), true
	case FieldClicks:
		return r.Clicks, true
	case FieldConversions:
		return float64(r.Conversions), true
	case FieldCost:
		return r.Cost, true
	case FieldConversionValue:
		return r.ConversionValue, true
	case FieldAvgPosition:
		return r.AvgPosition, true
	}
	return 0, false
}

type WeeklyTotal struct {
	Start       time.Time `json:"start"`
	Days        int       `json:"days"`
	Clicks      float64   `json:"clicks"`
	Conversions float64   `json:"conversions"`
}

type Metrics struct {
	Date            string  `json:"date"`
	Impressions     int     `json:"impressions"`
	Clicks          float64 `json:"clicks"`
	Conversions     int     `json:"conversions"`
	Cost            float64 `json:"cost"`
	ConversionValue float64 `json:"conversion_value"`
	AvgPosition     float64 `json:"avg_position"`
	CTR             float64 `json:"ctr"`
	CPC             float64 `json:"cpc"`
	CVR             float64 `json:"cvr"`
	CPA             float64 `json:"cpa"`
	ROAS            float64 `json:"roas"`
}

type ForecastPoint struct {
	Date        string  `json:"date"`
	Clicks      float64 `json:"clicks"`
	Conversions float64 `json:"conversions"`
}

type Forecast struct {
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	ClicksModel string          `json:"clicks_model" yaml:"clicks_model"`
	ConvModel   string          `json:"conversions_model" yaml:"conversions_model"`
	Points      []ForecastPoint `json:"points" yaml:"points"`
}

type ModelScore struct {
	Name      string    `json:"name" yaml:"name"`
	Detail    string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	RMSE      float64   `json:"rmse" yaml:"rmse"`
	MAE       float64   `json:"mae" yaml:"mae"`
	Predicted []float64 `json:"predicted" yaml:"predicted"`
	Err       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type Comparison struct {
	TrainDays int `json:"train_days" yaml:"train_days"`
	TestDays  int `json:"test_days" yaml:"test_days"`
	// Actual conversions on the held-out days; null for days absent from
	// the data, which are not scored.
	Actual     []*float64   `json:"actual" yaml:"actual"`
	ScoredDays int          `json:"scored_days" yaml:"scored_days"`
	Scores     []ModelScore `json:"scores" yaml:"scores"`
}
