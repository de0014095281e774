package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// PgVector wraps a float64 slice for use as a PostgreSQL VECTOR column value.
// It implements sql.Scanner and driver.Valuer to convert between Go and the
// PostgreSQL text format "[1.0,2.0,3.0]".
type PgVector struct {
	floats []float64
}

// NewPgVector creates a PgVector from a float64 slice. The input is copied so
// later mutations of the source slice have no effect.
func NewPgVector(floats []float64) PgVector {
	cp := make([]float64, len(floats))
	copy(cp, floats)
	return PgVector{floats: cp}
}

// Floats returns a copy of the underlying float64 slice, or nil if the vector
// was never initialized.
func (v PgVector) Floats() []float64 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// Dimension returns the number of elements in the vector.
func (v PgVector) Dimension() int {
	return len(v.floats)
}

// Scan implements sql.Scanner. The driver hands the vector literal over as
// either a string or []byte depending on the connection mode.
func (v *PgVector) Scan(value any) error {
	switch val := value.(type) {
	case nil:
		v.floats = nil
		return nil
	case string:
		return v.scanLiteral(val)
	case []byte:
		return v.scanLiteral(string(val))
	default:
		return fmt.Errorf("cannot scan %T into PgVector", value)
	}
}

func (v *PgVector) scanLiteral(raw string) error {
	floats, err := parseVectorLiteral(raw)
	if err != nil {
		return err
	}
	v.floats = floats
	return nil
}

// Value implements driver.Valuer.
func (v PgVector) Value() (driver.Value, error) {
	return v.String(), nil
}

// String returns the PostgreSQL vector literal "[1.0,2.0,3.0]".
func (v PgVector) String() string {
	buf := make([]byte, 0, len(v.floats)*12+2)
	buf = append(buf, '[')
	for i, f := range v.floats {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, f, 'f', -1, 64)
	}
	buf = append(buf, ']')
	return string(buf)
}

func parseVectorLiteral(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return []float64{}, nil
	}

	parts := strings.Split(raw, ",")
	floats := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		floats[i] = f
	}
	return floats, nil
}
