package store

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolpulse/pkg/contracts/domain"
)

func sampleWorkbook() domain.Workbook {
	return domain.Workbook{
		Source: "semana.xlsx",
		Sheets: []domain.RawSheet{
			{Name: "Índice de acerto", Rows: [][]any{
				{"Escola", "Semana 1", "Semana 2"},
				{"Escola <Norte> & Sul", 0.8, nil},
				{float64(1042), "n/a", 65.5},
			}},
		},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	savedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	data, err := EncodeWorkbook(sampleWorkbook(), savedAt)
	require.NoError(t, err)

	wb, gotSavedAt, err := DecodeWorkbook(data)
	require.NoError(t, err)
	assert.Equal(t, sampleWorkbook(), wb)
	assert.True(t, savedAt.Equal(gotSavedAt))
}

func TestSnapshot_Corrupt(t *testing.T) {
	good, err := EncodeWorkbook(sampleWorkbook(), time.Now())
	require.NoError(t, err)

	tampered := bytes.Replace(good, []byte("65.5"), []byte("99.5"), 1)
	require.NotEqual(t, good, tampered)

	var env snapshotEnvelope
	require.NoError(t, json.Unmarshal(good, &env))
	env.Version = 9
	futureVersion, err := json.Marshal(env)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not json")},
		{"empty object", []byte("{}")},
		{"tampered payload", tampered},
		{"unknown version", futureVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeWorkbook(tt.data)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}
