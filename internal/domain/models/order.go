package models

import (
	"errors"
	"fmt"
)

// OrderBundleVersion is the only bundle schema version understood.
const OrderBundleVersion = 1

var ErrInvalidBundle = errors.New("invalid order bundle")

type Order struct {
	P, D, Q int
}

func (o Order) Array() [3]int { return [3]int{o.P, o.D, o.Q} }

type SeasonalOrder struct {
	P, D, Q, S int
}

func (s SeasonalOrder) Array() [4]int { return [4]int{s.P, s.D, s.Q, s.S} }

// ModelSpec holds the ARIMA order and the SARIMA seasonal order.
type ModelSpec struct {
	Order    Order
	Seasonal SeasonalOrder
}

func DefaultModelSpec() ModelSpec {
	return ModelSpec{
		Order:    Order{P: 5, D: 1, Q: 0},
		Seasonal: SeasonalOrder{P: 1, D: 1, Q: 1, S: 5},
	}
}

// OrderBundle is the persisted form of a ModelSpec.
type OrderBundle struct {
	Version          int   `yaml:"version" json:"version"`
	NonSeasonalOrder []int `yaml:"nonSeasonalOrder" json:"nonSeasonalOrder"`
	SeasonalOrder    []int `yaml:"seasonalOrder" json:"seasonalOrder"`
}

func NewOrderBundle(spec ModelSpec) OrderBundle {
	o, s := spec.Order.Array(), spec.Seasonal.Array()
	return OrderBundle{
		Version:          OrderBundleVersion,
		NonSeasonalOrder: o[:],
		SeasonalOrder:    s[:],
	}
}

// Spec decodes and validates the bundle.
func (b OrderBundle) Spec() (ModelSpec, error) {
	if b.Version != OrderBundleVersion {
		return ModelSpec{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidBundle, b.Version)
	}
	if len(b.NonSeasonalOrder) != 3 {
		return ModelSpec{}, fmt.Errorf("%w: nonSeasonalOrder needs 3 values, got %d", ErrInvalidBundle, len(b.NonSeasonalOrder))
	}
	if len(b.SeasonalOrder) != 4 {
		return ModelSpec{}, fmt.Errorf("%w: seasonalOrder needs 4 values, got %d", ErrInvalidBundle, len(b.SeasonalOrder))
	}
	for _, v := range append(append([]int{}, b.NonSeasonalOrder...), b.SeasonalOrder...) {
		if v < 0 {
			return ModelSpec{}, fmt.Errorf("%w: negative order %d", ErrInvalidBundle, v)
		}
	}
	n, s := b.NonSeasonalOrder, b.SeasonalOrder
	spec := ModelSpec{
		Order:    Order{P: n[0], D: n[1], Q: n[2]},
		Seasonal: SeasonalOrder{P: s[0], D: s[1], Q: s[2], S: s[3]},
	}
	if (s[0] > 0 || s[1] > 0 || s[2] > 0) && s[3] < 2 {
		return ModelSpec{}, fmt.Errorf("%w: seasonal period %d must be at least 2", ErrInvalidBundle, s[3])
	}
	return spec, nil
}
