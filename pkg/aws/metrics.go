package aws

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricTransactionsCreated  = "TransactionsCreated"
	MetricTransactionsSettled  = "TransactionsSettled"
	MetricTransactionsRefunded = "TransactionsRefunded"
	MetricCacheHits            = "CacheHits"
	MetricCacheMisses          = "CacheMisses"
)

// Sample is one value sent to CloudWatch.
type Sample struct {
	Name  string
	Value float64
	Unit  types.StandardUnit
}

func Count(name string) Sample {
	return Sample{Name: name, Value: 1, Unit: types.StandardUnitCount}
}

func Latency(name string, d time.Duration) Sample {
	return Sample{Name: name, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds}
}

// MetricsClient publishes ledger and HTTP metrics under one namespace.
// A nil or disabled client drops everything.
type MetricsClient struct {
	client    *cloudwatch.Client
	namespace string
	enabled   bool
}

func NewMetricsClient(cfg aws.Config) *MetricsClient {
	namespace := os.Getenv("CLOUDWATCH_NAMESPACE")
	if namespace == "" {
		namespace = "PaymentLedger"
	}
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// Put sends all samples in a single PutMetricData call, sharing dimensions.
func (m *MetricsClient) Put(ctx context.Context, dimensions map[string]string, samples ...Sample) error {
	if !m.IsEnabled() || len(samples) == 0 {
		return nil
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: buildDatums(dimensions, samples, time.Now()),
	})
	if err != nil {
		return fmt.Errorf("put %d metrics to %s: %w", len(samples), m.namespace, err)
	}
	return nil
}

func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.Put(ctx, dimensions, Count(metricName))
}

func buildDatums(dimensions map[string]string, samples []Sample, at time.Time) []types.MetricDatum {
	names := make([]string, 0, len(dimensions))
	for k := range dimensions {
		names = append(names, k)
	}
	sort.Strings(names)

	dims := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(dimensions[k])})
	}

	out := make([]types.MetricDatum, 0, len(samples))
	for _, s := range samples {
		out = append(out, types.MetricDatum{
			MetricName: aws.String(s.Name),
			Value:      aws.Float64(s.Value),
			Unit:       s.Unit,
			Timestamp:  aws.Time(at),
			Dimensions: dims,
		})
	}
	return out
}
