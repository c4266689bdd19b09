package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultDataBase  = "https://data-api.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Rate limits al 60% de los límites reales documentados.
	// Data API /trades: 200/10s → 120/10s → 12/s
	dataRatePerSec = 12
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	// El breaker abre tras breakerFailures fallos seguidos y prueba de
	// nuevo pasado breakerCooldown.
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// errClientStatus marca los 4xx: son culpa de la petición, no de la API,
// y no cuentan para abrir el breaker.
var errClientStatus = errors.New("client error")

// api agrupa el limiter y el breaker de un host.
type api struct {
	base    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Client es el HTTP client de Polymarket con rate limiting, retries y
// un circuit breaker por API. Implementa TradeSource, MarketSource y
// ResolutionSource.
type Client struct {
	http  *http.Client
	data  api
	gamma api

	// maxPages acota la paginación de cada consulta.
	maxPages int
	// retryWait es la espera base del backoff (los tests la reducen).
	retryWait time.Duration
}

// Option ajusta un Client.
type Option func(*Client)

// WithMaxPages limita cuántas páginas se piden por consulta.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRetryWait cambia la espera base entre reintentos.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// WithRateLimit fija el mismo límite para las dos APIs.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.data.limiter = rate.NewLimiter(r, burst)
		c.gamma.limiter = rate.NewLimiter(r, burst)
	}
}

// WithHTTPClient reemplaza el http.Client (timeouts, transport).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient crea un Client con los base URLs dados.
// Si dataBase o gammaBase están vacíos, usa los URLs de producción.
func NewClient(dataBase, gammaBase string, opts ...Option) *Client {
	if dataBase == "" {
		dataBase = defaultDataBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	c := &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		data:      newAPI("polymarket-data", dataBase, rate.NewLimiter(dataRatePerSec, 5)),
		gamma:     newAPI("polymarket-gamma", gammaBase, rate.NewLimiter(gammaRatePerSec, 10)),
		maxPages:  defaultMaxPages,
		retryWait: baseRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newAPI(name, base string, limiter *rate.Limiter) api {
	return api{
		base:    base,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errClientStatus) ||
					errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state change", "api", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// get hace un GET a través del breaker de la API, con rate limiting y retries.
func (c *Client) get(ctx context.Context, a api, url string, out any) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, c.doWithRetry(ctx, a.limiter, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return c.http.Do(req)
		}, out)
	})
	return err
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil || attempt == maxRetries {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("%w %d: %s", errClientStatus, resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
