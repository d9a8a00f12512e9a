package models

// HealthMetric describes a trackable lab value and its normal range.
type HealthMetric struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	MinValue    float64 `json:"min_value"`
	MaxValue    float64 `json:"max_value"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}
