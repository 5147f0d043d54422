package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypesCompatible_DatetimeTimestamp(t *testing.T) {
	never := [][2]string{
		{"DATETIME", "TIMESTAMP"},
		{"TIMESTAMP", "DATETIME"},
		{"datetime", " timestamp "},
		{"Date Time", "TIME STAMP"},
		{"TIMESTAMP WITH TIME ZONE", "DATETIME"},
		{"DATETIME", "VARCHAR"},
	}
	for _, p := range never {
		assert.False(t, TypesCompatible(p[0], p[1]), "%q vs %q", p[0], p[1])
	}

	always := [][2]string{
		{"DATETIME", "DATETIME"},
		{"datetime", "DateTime"},
		{"TIMESTAMP", "timestamp"},
		{"TIME STAMP", "TIMESTAMP"},
		{"TIMESTAMP", "TIMESTAMP WITH TIME ZONE"},
	}
	for _, p := range always {
		assert.True(t, TypesCompatible(p[0], p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestTypesCompatible_Families(t *testing.T) {
	families := [][]string{
		{"INTEGER", "INT", "BIGINT"},
		{"DECIMAL", "NUMERIC", "NUMERIC(10, 2)"},
		{"BOOLEAN", "BOOL", "TINYINT", "TINYINT(1)"},
		{"VARCHAR", "TEXT", "STRING", "VARCHAR(255)"},
	}
	for _, fam := range families {
		for _, a := range fam {
			for _, b := range fam {
				assert.True(t, TypesCompatible(a, b), "%q vs %q", a, b)
			}
		}
	}
}

func TestTypesCompatible_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		live     string
		want     bool
	}{
		{"identical custom", "UUID", "uuid", true},
		{"distinct custom", "UUID", "JSONB", false},
		{"whitespace only differs", "DOUBLE PRECISION", "doubleprecision", true},
		{"int vs varchar", "INTEGER", "VARCHAR(10)", false},
		{"decimal vs int", "DECIMAL(10,2)", "INTEGER", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypesCompatible(tt.declared, tt.live))
		})
	}
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "VARCHAR(255)", normalizeType(" varchar ( 255 ) "))
	assert.Equal(t, "", normalizeType("\t\n"))
}
