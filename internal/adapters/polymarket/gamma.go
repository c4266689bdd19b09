package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 500
)

// FetchMarkets devuelve los mercados de Gamma creados antes de `to` que no
// habían cerrado antes de `from`.
func (c *Client) FetchMarkets(ctx context.Context, from, to time.Time) ([]domain.Market, error) {
	q := url.Values{}
	q.Set("end_date_min", from.UTC().Format(time.RFC3339))
	q.Set("start_date_max", to.UTC().Format(time.RFC3339))

	raw, err := c.fetchGammaMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, len(raw))
	for _, gm := range raw {
		if gm.ConditionID == "" {
			continue
		}
		markets = append(markets, mapMarket(gm))
	}
	return markets, nil
}

// FetchResolutions devuelve los mercados cerrados desde `from` cuyo
// ganador se puede leer de outcomePrices. Las resoluciones posteriores a
// `to` se incluyen.
func (c *Client) FetchResolutions(ctx context.Context, from, _ time.Time) ([]domain.Resolution, error) {
	q := url.Values{}
	q.Set("closed", "true")
	q.Set("end_date_min", from.UTC().Format(time.RFC3339))

	raw, err := c.fetchGammaMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchResolutions: %w", err)
	}

	resolutions := make([]domain.Resolution, 0, len(raw))
	skipped := 0
	for _, gm := range raw {
		r, ok := mapResolution(gm)
		if !ok {
			skipped++
			continue
		}
		resolutions = append(resolutions, r)
	}
	if skipped > 0 {
		slog.Debug("closed markets without a clear winner", "skipped", skipped)
	}
	return resolutions, nil
}

// fetchGammaMarkets pagina GET /markets con los filtros dados.
func (c *Client) fetchGammaMarkets(ctx context.Context, filters url.Values) ([]gammaMarket, error) {
	var all []gammaMarket
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		for k, v := range filters {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(gammaPageSize))
		q.Set("offset", strconv.Itoa(page*gammaPageSize))

		var resp []gammaMarket
		if err := c.get(ctx, c.gamma, c.gamma.base+gammaMarketsPath+"?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, resp...)

		slog.Debug("fetched gamma markets page", "page", page, "count", len(resp))
		if len(resp) < gammaPageSize {
			break
		}
	}
	return all, nil
}
