package metrics

// FieldKind describes the value type of one metric field, which decides the
// default used when a stream lacks a date and how the value is rendered in
// the destination
type FieldKind string

// Supported field kinds
const (
	// KindNumber is a plain count or gauge
	KindNumber FieldKind = "number"
	// KindPercent is a ratio stored as a decimal fraction
	KindPercent FieldKind = "percent"
	// KindText is a free-form string
	KindText FieldKind = "text"
)

// Zero returns the kind-appropriate default value
func (k FieldKind) Zero() any {
	if k == KindText {
		return ""
	}

	return float64(0)
}

// FieldSpec declares one field a stream produces
type FieldSpec struct {
	Name string    `yaml:"name" json:"name"`
	Kind FieldKind `yaml:"kind" json:"kind" default:"number"`
}

// MetricRecord is one day's values from a single source category.
// Records are immutable once produced by a collector.
type MetricRecord struct {
	Date   Date           `json:"date"`
	Values map[string]any `json:"values"`
}

// MetricStream is an ordered run of records from one source category,
// e.g. page views or follower deltas. Streams from different categories
// need not cover the same date range.
type MetricStream struct {
	Name    string         `json:"name"`
	Fields  []FieldSpec    `json:"fields"`
	Records []MetricRecord `json:"records"`
}

// MinDate returns the earliest record date, or a zero Date for empty streams
func (s *MetricStream) MinDate() Date {
	var minD Date
	for _, rec := range s.Records {
		if minD.IsZero() || rec.Date.Before(minD) {
			minD = rec.Date
		}
	}

	return minD
}

// MaxDate returns the latest record date, or a zero Date for empty streams
func (s *MetricStream) MaxDate() Date {
	var maxD Date
	for _, rec := range s.Records {
		if rec.Date.After(maxD) {
			maxD = rec.Date
		}
	}

	return maxD
}

// MergedRow is one destination row: a date plus the union of all stream
// fields, defaulted where a stream had no record for that date
type MergedRow struct {
	Date   Date           `json:"date"`
	Values map[string]any `json:"values"`
}
