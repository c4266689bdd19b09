package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// MarketSource obtiene la metadata de los mercados activos en la ventana dada.
type MarketSource interface {
	// FetchMarkets devuelve los mercados creados antes de `to` que no
	// habían cerrado antes de `from`.
	FetchMarkets(ctx context.Context, from, to time.Time) ([]domain.Market, error)
}

// ResolutionSource obtiene las resoluciones de mercados.
type ResolutionSource interface {
	// FetchResolutions devuelve las resoluciones ocurridas desde `from`.
	// Incluye resoluciones posteriores a `to`: un mercado que se resolvió
	// después de la ventana sigue siendo ground truth válido.
	FetchResolutions(ctx context.Context, from, to time.Time) ([]domain.Resolution, error)
}
