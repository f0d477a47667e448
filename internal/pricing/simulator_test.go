package pricing

import (
	"context"
	"testing"
	"time"

	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/database"
	"stock-trading-sim-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"pgregory.net/rapid"
)

// MockPublisher is a mock implementation of the Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(quotes []catalog.Quote) {
	m.Called(quotes)
}

type dateFunc func(time.Time) string

func (f dateFunc) DateOf(at time.Time) string { return f(at) }

// fixed returns a random source that always yields v.
func fixed(v float64) func() float64 {
	return func() float64 { return v }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupTest(t *testing.T, model Model, date *string, pub Publisher) (*Simulator, *gorm.DB) {
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)

	dates := dateFunc(func(time.Time) string { return *date })
	cfg := config.Pricing{Enabled: true, Interval: 10 * time.Millisecond, Bound: 0.05, Floor: 0.01}
	return NewSimulator(zap.NewNop(), cfg, db, catalog.NewService(db, zap.NewNop()), dates, model, pub), db
}

func newListing(t *testing.T, db *gorm.DB, ticker, price string) *models.Listing {
	l := models.Listing{
		Ticker: ticker, Name: ticker, Description: "test", TotalIssued: 10, Quantity: 10,
		InitialPrice: dec(price), CurrentPrice: dec(price),
	}
	require.NoError(t, db.Create(&l).Error)
	return &l
}

func TestUniformDrift_Next(t *testing.T) {
	testCases := []struct {
		name  string
		rand  float64
		price string
		floor float64
		want  string
	}{
		{"lower bound", 0, "100.00", 0.01, "95"},
		{"midpoint is flat", 0.5, "100.00", 0.01, "100"},
		{"upward", 0.75, "100.00", 0.01, "102.5"},
		{"rounds to cents", 0.75, "33.33", 0.01, "34.16"},
		{"clamped to floor", 0, "1.00", 1.00, "1"},
		{"never below a cent", 0, "0.01", 0.01, "0.01"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewUniformDrift(0.05, tc.floor, fixed(tc.rand))
			got := m.Next(dec(tc.price))
			assert.True(t, dec(tc.want).Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestUniformDrift_StaysInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bound := rapid.Float64Range(0.01, 0.2).Draw(rt, "bound")
		u := rapid.Float64Range(0, 0.999999).Draw(rt, "u")
		price := decimal.New(rapid.Int64Range(1, 10_000_000).Draw(rt, "cents"), -2)

		next := NewUniformDrift(bound, 0.01, fixed(u)).Next(price)

		assert.True(rt, next.GreaterThanOrEqual(dec("0.01")), "below floor: %s", next)
		assert.True(rt, next.Equal(next.Round(2)), "not rounded: %s", next)
		limit := price.Mul(decimal.NewFromFloat(bound)).Add(dec("0.01"))
		if next.GreaterThan(dec("0.01")) {
			assert.True(rt, next.Sub(price).Abs().LessThanOrEqual(limit), "moved %s from %s", next, price)
		}
	})
}

func TestTick_UpdatesPricesAndDailyStats(t *testing.T) {
	date := "2025-06-02"
	u := 0.75
	model := NewUniformDrift(0.05, 0.01, func() float64 { return u })
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything).Return()
	sim, db := setupTest(t, model, &date, pub)
	ctx := context.Background()
	acme := newListing(t, db, "ACME", "100.00")

	quotes, err := sim.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, dec("102.50").Equal(quotes[0].CurrentPrice))

	u = 0 // down 5%
	_, err = sim.Tick(ctx)
	require.NoError(t, err)

	var stat models.DailyStat
	require.NoError(t, db.Where("listing_id = ? AND date = ?", acme.ID, date).First(&stat).Error)
	assert.True(t, dec("100").Equal(stat.Open), "open %s", stat.Open)
	assert.True(t, dec("102.5").Equal(stat.High), "high %s", stat.High)
	assert.True(t, dec("97.38").Equal(stat.Low), "low %s", stat.Low)
	assert.True(t, dec("97.38").Equal(stat.Close), "close %s", stat.Close)

	var listing models.Listing
	require.NoError(t, db.First(&listing, acme.ID).Error)
	assert.True(t, dec("97.38").Equal(listing.CurrentPrice))
	assert.Equal(t, acme.Version+2, listing.Version)
	assert.True(t, dec("100").Equal(listing.InitialPrice), "initial price is never drifted")

	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestTick_NewDateStartsFreshStat(t *testing.T) {
	date := "2025-06-02"
	sim, db := setupTest(t, NewUniformDrift(0.05, 0.01, fixed(0.75)), &date, nil)
	ctx := context.Background()
	acme := newListing(t, db, "ACME", "100.00")

	_, err := sim.Tick(ctx)
	require.NoError(t, err)

	date = "2025-06-03"
	_, err = sim.Tick(ctx)
	require.NoError(t, err)

	var stats []models.DailyStat
	require.NoError(t, db.Where("listing_id = ?", acme.ID).Order("date").Find(&stats).Error)
	require.Len(t, stats, 2)
	assert.True(t, dec("102.5").Equal(stats[1].Open), "second day opens at previous close, got %s", stats[1].Open)
	assert.True(t, dec("102.5").Equal(stats[1].Low))
	assert.Zero(t, stats[1].Volume)
}

func TestTick_NoListings(t *testing.T) {
	date := "2025-06-02"
	pub := new(MockPublisher)
	pub.On("Publish", []catalog.Quote{}).Return()
	sim, _ := setupTest(t, NewUniformDrift(0.05, 0.01, nil), &date, pub)

	quotes, err := sim.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes)
	pub.AssertExpectations(t)
}

func TestRun_StopsOnCancel(t *testing.T) {
	date := "2025-06-02"
	pub := new(MockPublisher)
	ticked := make(chan struct{}, 1)
	pub.On("Publish", mock.Anything).Run(func(mock.Arguments) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}).Return()
	sim, db := setupTest(t, NewUniformDrift(0.05, 0.01, nil), &date, pub)
	newListing(t, db, "ACME", "10")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not tick")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
}
