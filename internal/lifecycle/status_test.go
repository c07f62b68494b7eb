package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw    string
		want   types.Status
		mapped bool
	}{
		{raw: "Ready for pickup", want: types.StatusReady, mapped: true},
		{raw: "READY FOR PICKUP until Oct 20", want: types.StatusReady, mapped: true},
		{raw: "In transit, not ready for pickup", want: types.StatusInTransit, mapped: true},
		{raw: "Not ready for pickup", want: types.StatusHoldPlaced, mapped: true},
		{raw: "was not ready for pickup, now ready for pickup", want: types.StatusReady, mapped: true},
		{raw: "In transit", want: types.StatusInTransit, mapped: true},
		{raw: "On hold", want: types.StatusHoldPlaced, mapped: true},
		{raw: "#3 on hold queue", want: types.StatusHoldPlaced, mapped: true},
		{raw: "Processing", want: types.StatusHoldPlaced, mapped: true},
		{raw: "Not ready", want: types.StatusHoldPlaced, mapped: true},
		{raw: "Suspended", mapped: false},
		{raw: "gibberish", mapped: false},
		{raw: "", mapped: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.mapped, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFoldTitle(t *testing.T) {
	assert.Equal(t, FoldTitle("Dragons Love Tacos"), FoldTitle("  dragons LOVE tacos "))
	assert.NotEqual(t, FoldTitle("Dragons Love Tacos"), FoldTitle("Dragons Love Tacos 2"))
	assert.Equal(t, FoldTitle("L'ÉCOLE DES LOISIRS"), FoldTitle("l'école des loisirs"))
}
