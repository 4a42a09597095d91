package poloniex

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

// DefaultUpstreamURL is the real exchange's public API endpoint.
const DefaultUpstreamURL = "https://poloniex.com/public"

const cacheSize = 128

// rawTTLs assigns each public command its pass-through cache lifetime.
var rawTTLs = map[string]time.Duration{
	"returnTicker":       5 * time.Second,
	"return24hVolume":    time.Hour,
	"returnOrderBook":    5 * time.Second,
	"returnTradeHistory": 5 * time.Second,
	"returnChartData":    60 * time.Second,
	"returnCurrencies":   time.Hour,
	"returnLoanOrders":   60 * time.Second,
}

// TickerInfo is the slice of a ticker row the validation and balance
// formatting need.
type TickerInfo struct {
	Last decimal.Decimal `json:"last"`
}

// CurrencyInfo is the slice of a currency row the simulation needs.
type CurrencyInfo struct {
	TxFee    decimal.Decimal `json:"txFee"`
	Disabled int             `json:"disabled"`
}

// RawResponse is an upstream reply passed through verbatim.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Proxy is a TTL-cached pass-through client over the real exchange's public
// command endpoint, with typed keyed maps for validation.
type Proxy struct {
	baseURL string
	client  *http.Client

	raw        map[string]*expirable.LRU[string, *RawResponse]
	tickers    *expirable.LRU[string, map[string]TickerInfo]
	currencies *expirable.LRU[string, map[string]CurrencyInfo]
}

// NewProxy creates a proxy over baseURL ("" means the real exchange).
func NewProxy(baseURL string) *Proxy {
	if baseURL == "" {
		baseURL = DefaultUpstreamURL
	}
	raw := make(map[string]*expirable.LRU[string, *RawResponse], len(rawTTLs))
	for command, ttl := range rawTTLs {
		raw[command] = expirable.NewLRU[string, *RawResponse](cacheSize, nil, ttl)
	}
	return &Proxy{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		raw:        raw,
		tickers:    expirable.NewLRU[string, map[string]TickerInfo](1, nil, 60*time.Second),
		currencies: expirable.NewLRU[string, map[string]CurrencyInfo](1, nil, time.Hour),
	}
}

func (p *Proxy) request(command string, params url.Values) (*RawResponse, error) {
	cache := p.raw[command]
	params.Set("command", command)
	key := params.Encode()
	if cached, ok := cache.Get(key); ok {
		return cached, nil
	}

	res, err := p.client.Get(p.baseURL + "?" + key)
	if err != nil {
		return nil, fmt.Errorf("upstream command %s failed: %w", command, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream response %s failed: %w", command, err)
	}

	response := &RawResponse{StatusCode: res.StatusCode, Body: body}
	cache.Add(key, response)
	return response, nil
}

// ReturnTicker proxies command=returnTicker.
func (p *Proxy) ReturnTicker() (*RawResponse, error) {
	return p.request("returnTicker", url.Values{})
}

// Return24hVolume proxies command=return24hVolume.
func (p *Proxy) Return24hVolume() (*RawResponse, error) {
	return p.request("return24hVolume", url.Values{})
}

// ReturnOrderBook proxies command=returnOrderBook.
func (p *Proxy) ReturnOrderBook(currencyPair, depth string) (*RawResponse, error) {
	params := url.Values{}
	setOptional(params, "currencyPair", currencyPair)
	setOptional(params, "depth", depth)
	return p.request("returnOrderBook", params)
}

// ReturnTradeHistory proxies the public command=returnTradeHistory.
func (p *Proxy) ReturnTradeHistory(currencyPair, start, end string) (*RawResponse, error) {
	params := url.Values{}
	setOptional(params, "currencyPair", currencyPair)
	setOptional(params, "start", start)
	setOptional(params, "end", end)
	return p.request("returnTradeHistory", params)
}

// ReturnChartData proxies command=returnChartData.
func (p *Proxy) ReturnChartData(currencyPair, start, end, period string) (*RawResponse, error) {
	params := url.Values{}
	setOptional(params, "currencyPair", currencyPair)
	setOptional(params, "start", start)
	setOptional(params, "end", end)
	setOptional(params, "period", period)
	return p.request("returnChartData", params)
}

// ReturnCurrencies proxies command=returnCurrencies.
func (p *Proxy) ReturnCurrencies() (*RawResponse, error) {
	return p.request("returnCurrencies", url.Values{})
}

// ReturnLoanOrders proxies command=returnLoanOrders.
func (p *Proxy) ReturnLoanOrders(currency string) (*RawResponse, error) {
	params := url.Values{}
	setOptional(params, "currency", currency)
	return p.request("returnLoanOrders", params)
}

// Tickers returns the reference tickers keyed by currency pair.
func (p *Proxy) Tickers() (map[string]TickerInfo, error) {
	if cached, ok := p.tickers.Get(""); ok {
		return cached, nil
	}
	tickers := map[string]TickerInfo{}
	if err := p.fetch("returnTicker", &tickers); err != nil {
		return nil, err
	}
	p.tickers.Add("", tickers)
	return tickers, nil
}

// Currencies returns the reference currencies keyed by code.
func (p *Proxy) Currencies() (map[string]CurrencyInfo, error) {
	if cached, ok := p.currencies.Get(""); ok {
		return cached, nil
	}
	currencies := map[string]CurrencyInfo{}
	if err := p.fetch("returnCurrencies", &currencies); err != nil {
		return nil, err
	}
	p.currencies.Add("", currencies)
	return currencies, nil
}

func (p *Proxy) fetch(command string, out interface{}) error {
	response, err := p.request(command, url.Values{})
	if err != nil {
		return err
	}
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return fmt.Errorf("upstream %s returned status %d", command, response.StatusCode)
	}

	var errEnvelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(response.Body, &errEnvelope); err == nil && errEnvelope.Error != "" {
		return newError(errEnvelope.Error)
	}
	if err := json.Unmarshal(response.Body, out); err != nil {
		return fmt.Errorf("upstream %s returned malformed body: %w", command, err)
	}
	return nil
}

// ParseCurrency validates a currency code against the reference data.
func (p *Proxy) ParseCurrency(currency string) (string, error) {
	if currency == "" {
		return "", newError(ErrRequiredParameterMissing)
	}
	currencies, err := p.Currencies()
	if err != nil {
		return "", err
	}
	if _, ok := currencies[currency]; !ok {
		return "", newError(ErrInvalidCurrency)
	}
	return currency, nil
}

// ParseCurrencyPair validates a currency pair against the tickers. The
// literal "all" means no filter and parses to "".
func (p *Proxy) ParseCurrencyPair(currencyPair string) (string, error) {
	if currencyPair == "" {
		return "", newError(ErrRequiredParameterMissing)
	}
	if currencyPair == "all" {
		return "", nil
	}
	tickers, err := p.Tickers()
	if err != nil {
		return "", err
	}
	if _, ok := tickers[currencyPair]; !ok {
		return "", newError(ErrInvalidCurrencyPair)
	}
	return currencyPair, nil
}

func setOptional(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
