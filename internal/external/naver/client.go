package naver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/wonny/sectorpulse/backend/pkg/httputil"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// DefaultChartURL serves siseJson daily candles
const DefaultChartURL = "https://fchart.stock.naver.com"

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string // 종목 페이지 (frgn.naver)
	chartURL   string // 일봉 차트 (siseJson.naver)
	maxPages   int
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, baseURL, chartURL string, log *logger.Logger) *Client {
	if chartURL == "" {
		chartURL = DefaultChartURL
	}
	httpClient.WithHeader("Referer", "https://finance.naver.com/")
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "naver"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		chartURL:   strings.TrimRight(chartURL, "/"),
		maxPages:   150,
	}
}

// fetch GETs base+path?params and returns the body
func (c *Client) fetch(ctx context.Context, base, path string, params url.Values) ([]byte, error) {
	fullURL := base + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("naver %s: %w", path, err)
	}
	return body, nil
}
