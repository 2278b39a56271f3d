package court

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

func testCourt(id string, status Status, sports ...string) *Court {
	return &Court{
		ID:         id,
		Name:       "Court " + id,
		Status:     status,
		SportTypes: sports,
		RatePlan:   pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(20)},
	}
}

func TestMemoryRepositoryListFiltersAndOrders(t *testing.T) {
	repo, err := NewMemoryRepository(
		testCourt("c", StatusActive, "padel"),
		testCourt("a", StatusActive, "tennis", "padel"),
		testCourt("b", StatusMaintenance, "padel"),
	)
	require.NoError(t, err)
	svc := NewService(repo)
	ctx := context.Background()

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := svc.List(ctx, Filter{Status: StatusActive, SportType: "padel"})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)

	tennis, err := svc.List(ctx, Filter{SportType: "tennis"})
	require.NoError(t, err)
	require.Len(t, tennis, 1)
}

func TestServiceGetByID(t *testing.T) {
	repo, err := NewMemoryRepository(testCourt("a", StatusActive))
	require.NoError(t, err)
	svc := NewService(repo)

	c, err := svc.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, c.Active())

	_, err = svc.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetByID(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestValidateRejectsMalformedCourts(t *testing.T) {
	bad := testCourt("x", Status("closed"))
	assert.ErrorIs(t, Validate(bad), ErrInvalidRecord)

	halfHours := testCourt("x", StatusActive)
	halfHours.OpenTime = "08:00"
	assert.ErrorIs(t, Validate(halfHours), ErrInvalidRecord)

	backwards := testCourt("x", StatusActive)
	backwards.OpenTime, backwards.CloseTime = "20:00", "08:00"
	assert.ErrorIs(t, Validate(backwards), ErrInvalidRecord)

	badPlan := testCourt("x", StatusActive)
	badPlan.RatePlan.BaseHourlyRate = decimal.NewFromInt(-5)
	assert.ErrorIs(t, Validate(badPlan), ErrInvalidRecord)

	_, err := NewMemoryRepository(bad)
	assert.Error(t, err)
}

func TestRowDecodingValidatesRatePlan(t *testing.T) {
	row := courtRow{ID: "a", Status: "active", OpenTime: "08:00:00", CloseTime: "22:00:00", RatePlan: []byte(`{"base_hourly_rate":"25.5","peak_hour_rate":"40"}`)}
	c, err := row.toCourt()
	require.NoError(t, err)
	assert.Equal(t, "08:00", c.OpenTime)
	assert.Equal(t, "25.5", c.RatePlan.BaseHourlyRate.String())
	require.NotNil(t, c.RatePlan.PeakHourRate)

	row.RatePlan = []byte(`{"base_hourly_rate":`)
	_, err = row.toCourt()
	assert.ErrorIs(t, err, ErrInvalidRecord)

	row.RatePlan = []byte(`{"base_hourly_rate":"10","member_discount":"150"}`)
	_, err = row.toCourt()
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
