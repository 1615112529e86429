// Package market implements the candle source against the KuCoin public
// REST API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/infrastructure/ratelimit"
)

const DefaultBaseURL = "https://api.kucoin.com"

// klineTypes maps internal timeframes to KuCoin kline types.
var klineTypes = map[domain.Timeframe]string{
	domain.TF1m:  "1min",
	domain.TF5m:  "5min",
	domain.TF15m: "15min",
	domain.TF1h:  "1hour",
	domain.TF4h:  "4hour",
	domain.TF1d:  "1day",
}

// Config tunes the client's rate limiting and timeouts.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             float64
	Timeout           time.Duration
}

// Client fetches OHLCV series and last-trade prices. Implements
// domain.CandleSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	cfg        Config
	log        zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    ratelimit.New(),
		cfg:        cfg,
		log:        log.With().Str("component", "market").Logger(),
	}
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Candles returns up to limit most recent candles in ascending time order.
// An unknown symbol yields an empty series, not an error.
func (c *Client) Candles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	klineType, ok := klineTypes[tf]
	if !ok {
		return nil, fmt.Errorf("market: unsupported timeframe %q", tf)
	}

	q := url.Values{}
	q.Set("type", klineType)
	q.Set("symbol", exchangeSymbol(symbol))

	var rows [][]string
	if err := c.get(ctx, "/api/v1/market/candles", q, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(symbol, tf, row)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed kline")
			continue
		}
		candles = append(candles, candle)
	}

	// KuCoin returns newest first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// LastPrice returns the latest traded price for the symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", exchangeSymbol(symbol))

	var data struct {
		Price string `json:"price"`
	}
	if err := c.get(ctx, "/api/v1/market/orderbook/level1", q, &data); err != nil {
		return 0, err
	}
	if data.Price == "" {
		return 0, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("market: parse price %q: %w", data.Price, err)
	}
	return price, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx, "kucoin", c.cfg.Burst, c.cfg.RequestsPerSecond); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("market: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market: %s: status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("market: decode %s: %w", path, err)
	}
	if env.Code != "200000" {
		return fmt.Errorf("market: %s: code %s %s", path, env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("market: decode %s data: %w", path, err)
		}
	}
	return nil
}

// parseKline converts one KuCoin kline row:
// [time, open, close, high, low, volume, turnover], time in unix seconds.
func parseKline(symbol string, tf domain.Timeframe, row []string) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("market: kline row has %d fields", len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("market: kline time: %w", err)
	}
	vals := make([]float64, 5)
	for i, raw := range row[1:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("market: kline field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return domain.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: ts * 1000,
		Open:      vals[0],
		Close:     vals[1],
		High:      vals[2],
		Low:       vals[3],
		Volume:    vals[4],
	}, nil
}

// exchangeSymbol converts "BTC/USDT" to KuCoin's "BTC-USDT".
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}
