package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
)

func TestDemoCourtsAreValid(t *testing.T) {
	courts := DemoCourts()
	require.NotEmpty(t, courts)

	seen := map[string]bool{}
	for _, c := range courts {
		assert.NoError(t, court.Validate(c), c.ID)
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}
