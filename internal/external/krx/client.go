package krx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/sectorpulse/backend/pkg/httputil"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

const jsonPath = "/comm/bldAttendant/getJsonData.cmd"

// Client handles communication with the KRX market data service (data.krx.co.kr)
// ⭐ SSOT: KRX 시장 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new KRX client.
// KRX blocks bot requests, so browser headers are set on httpClient.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient.
		WithHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		WithHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7").
		WithHeader("Origin", baseURL).
		WithHeader("Referer", baseURL+"/contents/MDC/MDI/mdiLoader/index.cmd?menuId=MDC0201020101")

	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "krx"),
		baseURL:    baseURL,
	}
}

// block is the KRX JSON envelope; screens use either OutBlock_1 or output
type block[T any] struct {
	OutBlock1 []T `json:"OutBlock_1"`
	Output    []T `json:"output"`
}

// fetchRows posts a bld query and decodes its rows
func fetchRows[T any](ctx context.Context, c *Client, bld string, params url.Values) ([]T, error) {
	form := url.Values{
		"bld":         {bld},
		"locale":      {"ko_KR"},
		"csvxls_isNo": {"false"},
	}
	for k, v := range params {
		form[k] = v
	}

	body, err := c.httpClient.PostFormBody(ctx, c.baseURL+jsonPath, form)
	if err != nil {
		return nil, fmt.Errorf("KRX %s: %w", bld, err)
	}

	var resp block[T]
	if err := json.Unmarshal(body, &resp); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		c.logger.WithField("response_preview", preview).Error("Failed to parse KRX response")
		return nil, fmt.Errorf("decode KRX %s response: %w", bld, err)
	}

	if len(resp.OutBlock1) > 0 {
		return resp.OutBlock1, nil
	}
	return resp.Output, nil
}

// marketID maps a market name to the KRX mktId parameter
func marketID(market string) (string, error) {
	switch strings.ToUpper(market) {
	case "KOSPI", "STK":
		return "STK", nil
	case "KOSDAQ", "KSQ":
		return "KSQ", nil
	case "ALL":
		return "ALL", nil
	default:
		return "", fmt.Errorf("unsupported market: %s", market)
	}
}

func formatDate(t time.Time) string {
	return t.Format("20060102")
}

// parseKRXNumber parses KRX number format (with commas) to int64
func parseKRXNumber(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.IntPart()
}

// parseKRXDecimal parses a KRX price/amount cell
func parseKRXDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseKRXRate parses a change-rate cell; ok is false for blank cells
func parseKRXRate(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// parseKRXDate accepts 2024/06/28, 2024-06-28 and 20240628
func parseKRXDate(s string) (time.Time, error) {
	s = strings.NewReplacer("/", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	return time.Parse("20060102", s)
}
