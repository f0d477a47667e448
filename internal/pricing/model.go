package pricing

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// Model defines how a listing price moves on each tick.
type Model interface {
	// Name returns the unique name of the model.
	Name() string

	// Next returns the price following price.
	Next(price decimal.Decimal) decimal.Decimal
}

// UniformDrift moves a price by a uniformly drawn percentage in
// [-Bound, +Bound], never below Floor, rounded to cents.
type UniformDrift struct {
	bound decimal.Decimal
	floor decimal.Decimal
	rand  func() float64
}

// NewUniformDrift creates a drift model. A nil rnd draws from math/rand.
func NewUniformDrift(bound, floor float64, rnd func() float64) *UniformDrift {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &UniformDrift{
		bound: decimal.NewFromFloat(bound),
		floor: decimal.NewFromFloat(floor).Round(2),
		rand:  rnd,
	}
}

func (m *UniformDrift) Name() string {
	return "uniform"
}

func (m *UniformDrift) Next(price decimal.Decimal) decimal.Decimal {
	// rand is in [0, 1); map it onto [-1, 1).
	u := decimal.NewFromFloat(m.rand()*2 - 1)
	next := price.Mul(decimal.NewFromInt(1).Add(u.Mul(m.bound))).Round(2)
	if next.LessThan(m.floor) {
		return m.floor
	}
	return next
}
