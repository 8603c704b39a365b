package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// parseQuantity accepts a plain float or an SI-prefixed quantity such as
// "1550nm", "5mA" or "250 mW". The unit, when present, must match unit.
func parseQuantity(text, unit string) (float64, error) {
	text = strings.TrimSpace(text)
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	v, got, err := humanize.ParseSI(text)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", text)
	}
	if got != "" && got != unit {
		return 0, fmt.Errorf("invalid quantity %q: unit must be %s", text, unit)
	}
	return v, nil
}

func formatQuantity(v float64, unit string) string {
	return humanize.SIWithDigits(v, 3, unit)
}

// siValue is a flag holding one SI quantity.
type siValue struct {
	unit  string
	value float64
}

func (v *siValue) String() string {
	if v == nil {
		return ""
	}
	return formatQuantity(v.value, v.unit)
}

func (v *siValue) Set(text string) error {
	parsed, err := parseQuantity(text, v.unit)
	if err != nil {
		return err
	}
	v.value = parsed
	return nil
}

// floatList is a comma separated list of SI quantities.
type floatList struct {
	unit   string
	values []float64
}

func (l *floatList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(l.values))
	for i, v := range l.values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (l *floatList) Set(text string) error {
	values, err := parseList(text, l.unit)
	if err != nil {
		return err
	}
	l.values = values
	return nil
}

// matrixValue is a weight matrix written as rows separated by ';' and
// columns by ','.
type matrixValue struct {
	rows [][]float64
}

func (m *matrixValue) String() string {
	if m == nil {
		return ""
	}
	rows := make([]string, len(m.rows))
	for i, row := range m.rows {
		rows[i] = (&floatList{values: row}).String()
	}
	return strings.Join(rows, ";")
}

func (m *matrixValue) Set(text string) error {
	var rows [][]float64
	for i, part := range strings.Split(text, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		row, err := parseList(part, "")
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return fmt.Errorf("weight matrix is empty")
	}
	m.rows = rows
	return nil
}

func parseList(text, unit string) ([]float64, error) {
	parts := strings.Split(text, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := parseQuantity(part, unit)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
