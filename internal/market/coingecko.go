package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linemk/sim-exchange/internal/lib/money"
)

const vsCurrency = "usd"

// CoinGeckoSource запрашивает цены через /simple/price.
type CoinGeckoSource struct {
	client  *http.Client
	baseURL string
}

func NewCoinGeckoSource(baseURL string, timeout time.Duration) *CoinGeckoSource {
	return &CoinGeckoSource{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *CoinGeckoSource) GetCurrentPrice(ctx context.Context, coinID string) (money.Money, error) {
	const op = "market.CoinGeckoSource.GetCurrentPrice"

	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", vsCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return money.Zero, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return money.Zero, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return money.Zero, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	// {"bitcoin":{"usd":50000.12}}; числа читаются как текст, без float64,
	// и округляются до 8 знаков: у дешёвых монет знаков бывает больше
	var body map[string]map[string]json.Number
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return money.Zero, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	raw, ok := body[coinID][vsCurrency]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %s", ErrPriceNotFound, coinID)
	}
	price, err := money.Parse(raw.String())
	if err != nil {
		return money.Zero, fmt.Errorf("%s: invalid price for %s: %w", op, coinID, err)
	}
	return price, nil
}
