// Package rates получает курсы валют Алиф Банка и считает кросс-конвертацию.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultURL = "https://alif.tj/api/rates"

// Base - валюта, относительно которой банк публикует курсы
const Base = "TJS"

// Displayed - валюты в порядке вывода /rates
var Displayed = []string{"USD", "EUR", "RUB", "UZS", "KZT"}

var ErrUnsupportedCurrency = errors.New("no rate for currency")

// Rate - курс покупки и продажи в TJS за единицу валюты
type Rate struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

type Rates map[string]Rate

type Client struct {
	url  string
	http *http.Client
}

// NewClient создает клиент API курсов. Запрос делается один раз, без повторов.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type ratesResponse struct {
	LocalRates []struct {
		Name      string          `json:"name"`
		BuyValue  decimal.Decimal `json:"buyValue"`
		SellValue decimal.Decimal `json:"sellValue"`
	} `json:"localRates"`
}

// Fetch загружает текущие курсы. Курс TJS всегда равен единице.
func (c *Client) Fetch(ctx context.Context) (Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rates api returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}

	out := Rates{Base: {Buy: decimal.NewFromInt(1), Sell: decimal.NewFromInt(1)}}
	for _, r := range body.LocalRates {
		name := strings.ToUpper(r.Name)
		if !isDisplayed(name) {
			continue
		}
		out[name] = Rate{Buy: r.BuyValue, Sell: r.SellValue}
	}
	return out, nil
}

func isDisplayed(name string) bool {
	for _, c := range Displayed {
		if c == name {
			return true
		}
	}
	return false
}

// Convert переводит amount из from в to через TJS: банк покупает from и
// продает to. Результат округляется до 2 знаков, кросс-курс до 4.
func Convert(amount decimal.Decimal, from, to string, rates Rates) (result, rate decimal.Decimal, err error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	src, ok := rates[from]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	dst, ok := rates[to]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	if from == to {
		return amount, decimal.NewFromInt(1), nil
	}
	if dst.Sell.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: zero sell rate for %s", ErrUnsupportedCurrency, to)
	}

	result = amount.Mul(src.Buy).Div(dst.Sell).Round(2)
	rate = src.Buy.Div(dst.Sell).Round(4)
	return result, rate, nil
}
