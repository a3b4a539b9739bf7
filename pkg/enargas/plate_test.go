package enargas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab-123-cd", "AB123CD"},
		{" aaa 123 ", "AAA123"},
		{"AB.123.CD", "AB123CD"},
		{"ñab123cd", "AB123CD"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizePlate(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePlate(got), "normalize is idempotent")
		})
	}
}

func TestValidatePlate(t *testing.T) {
	tests := []struct {
		plate string
		valid bool
	}{
		{"AAA123", true},
		{"AB123CD", true},
		{"AB1234", false},
		{"A123BCD", false},
		{"AAA1234", false},
		{"ab123cd", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.plate, func(t *testing.T) {
			err := ValidatePlate(tt.plate)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPlate)
			}
		})
	}
}

func TestParsePlate(t *testing.T) {
	plate, err := ParsePlate("ab-123-cd")
	require.NoError(t, err)
	assert.Equal(t, "AB123CD", plate)

	_, err = ParsePlate("AB1234")
	assert.ErrorIs(t, err, ErrInvalidPlate)
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "AB123CD_ENARGAS.pdf", PDFFilename("AB123CD", "_ENARGAS.pdf"))
	assert.Equal(t, "AB123CD_ENARGAS.pdf", PDFFilename("ab/123..cd", "_ENARGAS.pdf"))
	assert.Equal(t, "PATENTE.pdf", PDFFilename("../", ".pdf"))
}

func TestOutcomeLabels(t *testing.T) {
	tests := []struct {
		out      Outcome
		label    string
		recycles bool
	}{
		{Success(fakePDF, "AB123CD_ENARGAS.pdf", 1), "", false},
		{NotRegistered(), "Patente NO registrada", false},
		{SessionAlreadyActive("x"), "Sesión Activa", true},
		{InvalidCredentials(), "Credenciales inválidas", false},
		{Unrecognized("timeout"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.out.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.label, tt.out.Label())
			assert.Equal(t, tt.recycles, tt.out.RecyclesSession())
		})
	}
}

func TestParseRowsPicksLatestDate(t *testing.T) {
	rows, err := parseRows(resultMarkup)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header and rows without action are skipped")

	row, ok := latestRow(rows)
	require.True(t, ok)
	assert.Equal(t, 2, row.Index)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), row.Date)
	assert.Contains(t, row.Text, "03/05/2024")
}

func TestParseRows(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		indexes []int
	}{
		{
			name:    "onclick on the row itself",
			markup:  `<table><tr onclick="ver()"><td>01/02/2024</td></tr></table>`,
			indexes: nil,
		},
		{
			name:    "onclick cell",
			markup:  `<table><tr><td onclick="ver()">01/02/2024</td></tr></table>`,
			indexes: []int{0},
		},
		{
			name:    "submit input",
			markup:  `<table><tr><td>01/02/2024</td><td><input type="SUBMIT"></td></tr></table>`,
			indexes: []int{0},
		},
		{
			name:    "text input is not an action",
			markup:  `<table><tr><td>01/02/2024</td><td><input type="text"></td></tr></table>`,
			indexes: nil,
		},
		{
			name:    "impossible date",
			markup:  `<table><tr><td>31/02/2024</td><td><a>Ver</a></td></tr></table>`,
			indexes: nil,
		},
		{
			name:    "empty",
			markup:  ``,
			indexes: nil,
		},
		{
			name:    "container is the table body",
			markup:  `<tbody><tr><td>01/01/2024</td><td><a href="#">Ver</a></td></tr></tbody>`,
			indexes: []int{0},
		},
		{
			name: "container is the table",
			markup: `
				<thead><tr><th>Fecha</th><th></th></tr></thead>
				<tr><td>01/01/2024</td><td><a href="#">Ver</a></td></tr>
				<tr><td>02/01/2024</td><td>sin acción</td></tr>
				<tr><td>03/01/2024</td><td><button>Ver</button></td></tr>`,
			indexes: []int{1, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseRows(tt.markup)
			require.NoError(t, err)

			var got []int
			for _, r := range rows {
				got = append(got, r.Index)
			}
			assert.Equal(t, tt.indexes, got)
		})
	}
}

func TestLatestRowEmpty(t *testing.T) {
	_, ok := latestRow(nil)
	assert.False(t, ok)
}
