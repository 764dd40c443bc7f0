package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
	"github.com/shopspring/decimal"
)

const (
	BASE_CURRENCY  = "USD"
	LOCAL_CURRENCY = "CLP"
	CROSS_CURRENCY = "EUR"
)

var errRatesUnavailable = appErrors.New(appErrors.ErrUpstream, "No se pudo obtener tasas de cambio")

type Rates struct {
	Base       string
	USDToLocal float64
	EURToLocal float64
}

type Provider interface {
	FetchRates(ctx context.Context) (Rates, error)
}

// Client reads snapshots in the open.er-api.com format.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client for baseURL. A zero timeout means the request
// only ends with its context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type latestResponse struct {
	Result   string                     `json:"result"`
	BaseCode string                     `json:"base_code"`
	Rates    map[string]decimal.Decimal `json:"rates"`
}

func (c *Client) FetchRates(ctx context.Context) (Rates, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	url := fmt.Sprintf("%s/latest/%s", c.baseURL, BASE_CURRENCY)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to build rates request in Client.FetchRates() | Error: %v", traceID, err)
		return Rates{}, errRatesUnavailable
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to reach rates provider in Client.FetchRates() | Error: %v", traceID, err)
		return Rates{}, errRatesUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logging.Logger.Errorf("[TraceID=%s] | rates provider answered %d in Client.FetchRates() | Body: %s", traceID, resp.StatusCode, string(body))
		return Rates{}, errRatesUnavailable
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to decode rates response in Client.FetchRates() | Error: %v", traceID, err)
		return Rates{}, errRatesUnavailable
	}

	rates, err := payload.toRates()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | malformed rates response in Client.FetchRates() | Error: %v", traceID, err)
		return Rates{}, errRatesUnavailable
	}
	return rates, nil
}

func (p latestResponse) toRates() (Rates, error) {
	if p.Result != "" && p.Result != "success" {
		return Rates{}, fmt.Errorf("provider result %q", p.Result)
	}
	local, ok := p.Rates[LOCAL_CURRENCY]
	if !ok || !local.IsPositive() {
		return Rates{}, fmt.Errorf("missing or invalid %s rate", LOCAL_CURRENCY)
	}
	cross, ok := p.Rates[CROSS_CURRENCY]
	if !ok || !cross.IsPositive() {
		return Rates{}, fmt.Errorf("missing or invalid %s rate", CROSS_CURRENCY)
	}

	return Rates{
		Base:       BASE_CURRENCY,
		USDToLocal: local.InexactFloat64(),
		EURToLocal: local.Div(cross).InexactFloat64(),
	}, nil
}
