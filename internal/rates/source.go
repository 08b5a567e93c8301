// Package rates provides the reference rates (CDI, Selic, TR) the projector
// derives its monthly yields from.
package rates

import (
	"context"

	"caixinhas/internal/projection"
)

// Source returns the reference rates currently in force.
// Implementations wrap projection.ErrRateUnavailable when they cannot answer.
type Source interface {
	Current(ctx context.Context) (projection.Rates, error)
	Name() string
}
