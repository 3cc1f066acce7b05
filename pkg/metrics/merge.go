package metrics

import (
	"fmt"
	"sort"
)

// Merge combines per-category streams into one densely-filled row per date.
// Every row carries the union of all streams' fields; where a stream has no
// record for a date, its fields hold kind-appropriate defaults. Each field
// belongs to exactly one stream, so no field-level conflicts can occur and
// the output is deterministic regardless of stream order.
//
// Records missing a declared field are filled with the field's default and
// reported in the returned warnings rather than failing the merge.
func Merge(streams []MetricStream) ([]MergedRow, []string) {
	// Union schema across all streams
	schema := make(map[string]FieldKind)
	for _, stream := range streams {
		for _, field := range stream.Fields {
			schema[field.Name] = field.Kind
		}
	}

	var warnings []string

	rows := make(map[string]*MergedRow)
	for _, stream := range streams {
		for _, rec := range stream.Records {
			key := rec.Date.String()

			row, ok := rows[key]
			if !ok {
				row = &MergedRow{Date: rec.Date, Values: make(map[string]any, len(schema))}
				for name, kind := range schema {
					row.Values[name] = kind.Zero()
				}
				rows[key] = row
			}

			for _, field := range stream.Fields {
				value, ok := rec.Values[field.Name]
				if !ok {
					warnings = append(warnings, fmt.Sprintf(
						"stream %s: record %s missing field %q, defaulted", stream.Name, key, field.Name))
					continue
				}

				row.Values[field.Name] = normalizeValue(field.Kind, value)
			}
		}
	}

	out := make([]MergedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	sort.Strings(warnings)

	return out, warnings
}

// normalizeValue coerces a raw collector value to its declared kind.
// Percent values above 1 are taken to be whole percentages and scaled to
// the decimal fraction the destination's percent formatting expects.
func normalizeValue(kind FieldKind, value any) any {
	switch kind {
	case KindText:
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", value)
	case KindPercent:
		f, ok := toFloat(value)
		if !ok {
			return float64(0)
		}
		if f > 1 {
			return f / 100
		}
		return f
	default:
		f, ok := toFloat(value)
		if !ok {
			return float64(0)
		}
		return f
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
