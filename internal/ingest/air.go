package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/greencity/internal/httputil"
	"github.com/lox/greencity/internal/metrics"
	"github.com/lox/greencity/internal/models"
)

const DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

// Aarhus city centre.
const (
	DefaultLatitude  = 56.1567
	DefaultLongitude = 10.2108
)

type AirQualityClient struct {
	baseURL     string
	lat         float64
	lon         float64
	client      *http.Client
	retryWindow time.Duration
}

func NewAirQualityClient(baseURL string, lat, lon float64) *AirQualityClient {
	if baseURL == "" {
		baseURL = DefaultAirQualityURL
	}
	return &AirQualityClient{
		baseURL:     baseURL,
		lat:         lat,
		lon:         lon,
		client:      httputil.NewClient(),
		retryWindow: 2 * time.Minute,
	}
}

// SetRetryWindow bounds the total time spent retrying one fetch.
func (c *AirQualityClient) SetRetryWindow(d time.Duration) {
	c.retryWindow = d
}

// FetchResult describes the HTTP exchange for ingest auditing.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	Body         []byte
}

type airQualityResponse struct {
	Hourly *struct {
		PM10 []*float64 `json:"pm10"`
		PM25 []*float64 `json:"pm2_5"`
		NO2  []*float64 `json:"nitrogen_dioxide"`
	} `json:"hourly"`
	Current *struct {
		EuropeanAQI *float64 `json:"european_aqi"`
	} `json:"current"`
}

func (c *AirQualityClient) requestURL(date time.Time) string {
	day := date.Format(models.DateLayout)
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.lon, 'f', -1, 64))
	q.Set("hourly", "pm10,pm2_5,nitrogen_dioxide")
	q.Set("current", "european_aqi")
	q.Set("start_date", day)
	q.Set("end_date", day)
	return c.baseURL + "?" + q.Encode()
}

// FetchDay returns the day's mean pm10, pm2_5 and no2 plus the current
// European AQI. Transport failures and non-200 responses are errors; a body
// that cannot be decoded, or lacks a series, yields nil values instead.
func (c *AirQualityClient) FetchDay(ctx context.Context, date time.Time) (models.RawMetrics, *FetchResult, error) {
	reqURL := c.requestURL(date)
	result := &FetchResult{}

	operation := func() error {
		req, err := httputil.NewRequest(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		metrics.AirAPILatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.AirAPICallsTotal.WithLabelValues("error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch air quality: %w", err))
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		metrics.AirAPICallsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("air quality: retryable status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch air quality: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		result.Body = body
		result.ResponseSize = len(body)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryWindow
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, result, err
	}

	return parseAirQuality(result.Body), result, nil
}

func parseAirQuality(body []byte) models.RawMetrics {
	raw := models.RawMetrics{
		"pm10":         nil,
		"pm2_5":        nil,
		"no2":          nil,
		"european_aqi": nil,
	}

	var data airQualityResponse
	if err := json.Unmarshal(body, &data); err != nil {
		log.Printf("ingest: air quality response unreadable, reporting no values: %v", err)
		return raw
	}

	if data.Hourly != nil {
		raw["pm10"] = mean(data.Hourly.PM10)
		raw["pm2_5"] = mean(data.Hourly.PM25)
		raw["no2"] = mean(data.Hourly.NO2)
	}
	if data.Current != nil {
		raw["european_aqi"] = data.Current.EuropeanAQI
	}
	return raw
}

// mean averages the non-null entries, or returns nil when there are none.
func mean(values []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return models.Float(sum / float64(n))
}
