package bittrex

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

// DefaultUpstreamURL is the real exchange's public API root.
const DefaultUpstreamURL = "https://bittrex.com/api/v1.1/public/"

const cacheSize = 128

// rawTTLs assigns each public method its pass-through cache lifetime.
var rawTTLs = map[string]time.Duration{
	"getmarkets":         time.Hour,
	"getcurrencies":      time.Hour,
	"getticker":          5 * time.Second,
	"getmarketsummaries": 60 * time.Second,
	"getmarketsummary":   60 * time.Second,
	"getorderbook":       5 * time.Second,
	"getmarkethistory":   5 * time.Second,
}

// MarketInfo is the reference data one market row carries.
type MarketInfo struct {
	MarketName     string          `json:"MarketName"`
	BaseCurrency   string          `json:"BaseCurrency"`
	MarketCurrency string          `json:"MarketCurrency"`
	MinTradeSize   decimal.Decimal `json:"MinTradeSize"`
	IsActive       bool            `json:"IsActive"`
}

// CurrencyInfo is the reference data one currency row carries.
type CurrencyInfo struct {
	Currency string          `json:"Currency"`
	TxFee    decimal.Decimal `json:"TxFee"`
	IsActive bool            `json:"IsActive"`
}

// RawResponse is an upstream reply passed through verbatim.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Proxy is a TTL-cached pass-through client over the real exchange's public
// endpoints. Reference data is additionally exposed as keyed maps used by
// the validation ladder.
type Proxy struct {
	baseURL string
	client  *http.Client

	raw        map[string]*expirable.LRU[string, *RawResponse]
	markets    *expirable.LRU[string, map[string]MarketInfo]
	currencies *expirable.LRU[string, map[string]CurrencyInfo]
}

// NewProxy creates a proxy over baseURL ("" means the real exchange).
func NewProxy(baseURL string) *Proxy {
	if baseURL == "" {
		baseURL = DefaultUpstreamURL
	}
	raw := make(map[string]*expirable.LRU[string, *RawResponse], len(rawTTLs))
	for method, ttl := range rawTTLs {
		raw[method] = expirable.NewLRU[string, *RawResponse](cacheSize, nil, ttl)
	}
	return &Proxy{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		raw:        raw,
		markets:    expirable.NewLRU[string, map[string]MarketInfo](1, nil, time.Hour),
		currencies: expirable.NewLRU[string, map[string]CurrencyInfo](1, nil, time.Hour),
	}
}

func (p *Proxy) request(method string, params url.Values) (*RawResponse, error) {
	cache := p.raw[method]
	key := params.Encode()
	if cached, ok := cache.Get(key); ok {
		return cached, nil
	}

	endpoint := p.baseURL + method
	if key != "" {
		endpoint += "?" + key
	}
	res, err := p.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("upstream request %s failed: %w", method, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream response %s failed: %w", method, err)
	}

	response := &RawResponse{StatusCode: res.StatusCode, Body: body}
	cache.Add(key, response)
	return response, nil
}

// GetMarkets proxies public/getmarkets.
func (p *Proxy) GetMarkets() (*RawResponse, error) {
	return p.request("getmarkets", url.Values{})
}

// GetCurrencies proxies public/getcurrencies.
func (p *Proxy) GetCurrencies() (*RawResponse, error) {
	return p.request("getcurrencies", url.Values{})
}

// GetTicker proxies public/getticker.
func (p *Proxy) GetTicker(market string) (*RawResponse, error) {
	return p.request("getticker", optionalParams("market", market))
}

// GetMarketSummaries proxies public/getmarketsummaries.
func (p *Proxy) GetMarketSummaries() (*RawResponse, error) {
	return p.request("getmarketsummaries", url.Values{})
}

// GetMarketSummary proxies public/getmarketsummary.
func (p *Proxy) GetMarketSummary(market string) (*RawResponse, error) {
	return p.request("getmarketsummary", optionalParams("market", market))
}

// GetOrderBook proxies public/getorderbook. An empty orderBookType defaults
// to both sides.
func (p *Proxy) GetOrderBook(market, orderBookType string) (*RawResponse, error) {
	if orderBookType == "" {
		orderBookType = "both"
	}
	params := optionalParams("market", market)
	params.Set("type", orderBookType)
	return p.request("getorderbook", params)
}

// GetMarketHistory proxies public/getmarkethistory.
func (p *Proxy) GetMarketHistory(market string) (*RawResponse, error) {
	return p.request("getmarkethistory", optionalParams("market", market))
}

// Markets returns the reference markets keyed by market name.
func (p *Proxy) Markets() (map[string]MarketInfo, error) {
	if cached, ok := p.markets.Get(""); ok {
		return cached, nil
	}
	var rows []MarketInfo
	if err := p.fetchResult("getmarkets", &rows); err != nil {
		return nil, err
	}
	markets := make(map[string]MarketInfo, len(rows))
	for _, row := range rows {
		markets[row.MarketName] = row
	}
	p.markets.Add("", markets)
	return markets, nil
}

// Currencies returns the reference currencies keyed by currency code.
func (p *Proxy) Currencies() (map[string]CurrencyInfo, error) {
	if cached, ok := p.currencies.Get(""); ok {
		return cached, nil
	}
	var rows []CurrencyInfo
	if err := p.fetchResult("getcurrencies", &rows); err != nil {
		return nil, err
	}
	currencies := make(map[string]CurrencyInfo, len(rows))
	for _, row := range rows {
		currencies[row.Currency] = row
	}
	p.currencies.Add("", currencies)
	return currencies, nil
}

func (p *Proxy) fetchResult(method string, out interface{}) error {
	response, err := p.request(method, url.Values{})
	if err != nil {
		return err
	}
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return fmt.Errorf("upstream %s returned status %d", method, response.StatusCode)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(response.Body, &envelope); err != nil {
		return fmt.Errorf("upstream %s returned malformed body: %w", method, err)
	}
	if !envelope.Success {
		return newError(envelope.Message)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("upstream %s returned malformed result: %w", method, err)
	}
	return nil
}

// ParseMarket validates a market against the reference data. Optional
// markets may be empty, meaning no filter.
func (p *Proxy) ParseMarket(market string, optional bool) (string, error) {
	if market == "" {
		if optional {
			return "", nil
		}
		return "", newError(ErrMarketNotProvided)
	}
	markets, err := p.Markets()
	if err != nil {
		return "", err
	}
	if _, ok := markets[market]; !ok {
		return "", newError(ErrInvalidMarket)
	}
	return market, nil
}

// ParseCurrency validates a currency against the reference data. Optional
// currencies may be empty, meaning no filter.
func (p *Proxy) ParseCurrency(currency string, optional bool) (string, error) {
	if currency == "" {
		if optional {
			return "", nil
		}
		return "", newError(ErrCurrencyNotProvided)
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

func optionalParams(key, value string) url.Values {
	params := url.Values{}
	if value != "" {
		params.Set(key, value)
	}
	return params
}
