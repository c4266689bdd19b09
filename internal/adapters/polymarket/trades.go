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
	tradesPerPage   = 500
	defaultMaxPages = 20
)

// FetchTrades obtiene los trades de la Data API dentro de [from, to).
// La API pagina de más reciente a más antiguo, así que se deja de pedir
// en cuanto una página termina antes de `from`.
func (c *Client) FetchTrades(ctx context.Context, from, to time.Time) ([]domain.Trade, error) {
	w := domain.Window{Start: from, End: to}
	var all []domain.Trade

	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(tradesPerPage))
		q.Set("offset", strconv.Itoa(page*tradesPerPage))
		q.Set("takerOnly", "false")

		var resp []dataTrade
		if err := c.get(ctx, c.data, c.data.base+"/trades?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("polymarket.FetchTrades: page %d: %w", page, err)
		}
		if len(resp) == 0 {
			break
		}

		oldest := time.Time{}
		for _, rt := range resp {
			t := mapTrade(rt)
			if oldest.IsZero() || t.Timestamp.Before(oldest) {
				oldest = t.Timestamp
			}
			if w.Contains(t.Timestamp) {
				all = append(all, t)
			}
		}

		slog.Debug("fetched trades page",
			"page", page,
			"count", len(resp),
			"kept", len(all),
		)

		if len(resp) < tradesPerPage || oldest.Before(from) {
			break
		}
	}

	return all, nil
}
