package biofeedback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeImprovement(t *testing.T) {
	cases := []struct {
		name    string
		current float64
		history []HistoricalRecord
		want    float64
	}{
		{"no history", 80, nil, 0},
		{"single record", 80, []HistoricalRecord{{Score: ptr(40)}}, 1.0},
		{"single regression", 30, []HistoricalRecord{{Score: ptr(60)}}, -0.5},
		{"single zero baseline", 80, []HistoricalRecord{{Score: ptr(0)}}, 0},
		{"single missing score", 80, []HistoricalRecord{{}}, 0},
		{"duplicate last skips to second", 80, []HistoricalRecord{{Score: ptr(80)}, {Score: ptr(40)}}, 1.0},
		{"different last is baseline", 80, []HistoricalRecord{{Score: ptr(64)}, {Score: ptr(40)}}, 0.25},
		{"duplicate last without second score", 80, []HistoricalRecord{{Score: ptr(80)}, {}}, 0},
		{"missing last score", 80, []HistoricalRecord{{}, {Score: ptr(40)}}, 0},
		{"duplicate last zero second", 80, []HistoricalRecord{{Score: ptr(80)}, {Score: ptr(0)}}, 0},
		{"too much history", 80, []HistoricalRecord{{Score: ptr(10)}, {Score: ptr(20)}, {Score: ptr(30)}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, ComputeImprovement(tc.current, tc.history), 1e-9)
		})
	}
}
