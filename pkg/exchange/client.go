package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://v6.exchangerate-api.com/v6"

var (
	ErrMissingAPIKey = errors.New("exchange rate API key is not configured")
	ErrRateNotFound  = errors.New("exchange rate not found")
)

type Rate struct {
	Base        string
	Target      string
	Value       decimal.Decimal
	LastUpdated string
	Result      string
}

type Client interface {
	Rate(ctx context.Context, base, target string) (Rate, error)
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	TimeLastUpdate  string                     `json:"time_last_update_utc"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

type ClientImpl struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.FieldLogger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger log.FieldLogger) *ClientImpl {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ClientImpl{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Rate fetches the latest rates for base and picks the one for target.
// GET {baseURL}/{apiKey}/latest/{base}
func (c *ClientImpl) Rate(ctx context.Context, base, target string) (Rate, error) {
	if c.apiKey == "" {
		return Rate{}, ErrMissingAPIKey
	}
	base = strings.ToUpper(base)
	target = strings.ToUpper(target)

	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Errorf("Failed to create request: %v", err)
		return Rate{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorf("Error fetching exchange rate: %v", err)
		return Rate{}, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	var body latestResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Errorf("Exchange rate API returned status %d (%s)", resp.StatusCode, body.ErrorType)
		return Rate{}, fmt.Errorf("exchange rate API returned status %d: %s", resp.StatusCode, body.ErrorType)
	}
	if decodeErr != nil {
		c.logger.Errorf("Failed to decode exchange rate response: %v", decodeErr)
		return Rate{}, fmt.Errorf("failed to decode exchange rate response: %w", decodeErr)
	}
	if body.Result != "" && body.Result != "success" {
		c.logger.Errorf("Exchange rate API result: %s (%s)", body.Result, body.ErrorType)
		return Rate{}, fmt.Errorf("exchange rate API result %s: %s", body.Result, body.ErrorType)
	}

	value, ok := body.ConversionRates[target]
	if !ok {
		c.logger.Errorf("Exchange rate for %s not found.", target)
		return Rate{}, fmt.Errorf("%w: %s -> %s", ErrRateNotFound, base, target)
	}
	c.logger.Infof("Time last updated: %s", body.TimeLastUpdate)
	c.logger.Infof("API result status: %s", body.Result)

	return Rate{
		Base:        base,
		Target:      target,
		Value:       value,
		LastUpdated: body.TimeLastUpdate,
		Result:      body.Result,
	}, nil
}
