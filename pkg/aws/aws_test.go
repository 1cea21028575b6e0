package aws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestMetricsClient_DisabledIsNoop(t *testing.T) {
	var nilClient *MetricsClient
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricTransactionsCreated, nil))

	disabled := &MetricsClient{namespace: "x"}
	assert.NoError(t, disabled.Put(context.Background(), map[string]string{"Path": "/"}, Latency(MetricHTTPLatency, time.Second)))
}

func TestBuildDatums_SharedSortedDimensions(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	datums := buildDatums(
		map[string]string{"Status": "2xx", "Method": "GET"},
		[]Sample{Count(MetricHTTPRequests), Latency(MetricHTTPLatency, 1500*time.Millisecond)},
		at,
	)

	if assert.Len(t, datums, 2) {
		assert.Equal(t, MetricHTTPRequests, *datums[0].MetricName)
		assert.Equal(t, 1.0, *datums[0].Value)
		assert.Equal(t, 1500.0, *datums[1].Value)
		assert.Equal(t, at, *datums[1].Timestamp)
		if assert.Len(t, datums[0].Dimensions, 2) {
			assert.Equal(t, "Method", *datums[0].Dimensions[0].Name)
			assert.Equal(t, "Status", *datums[0].Dimensions[1].Name)
		}
	}
}

func TestLoadAWSConfig_CustomEndpoint(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_REGION", "eu-west-2")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadAWSConfig(context.Background())
	assert.NoError(t, err)
	if assert.NotNil(t, cfg.EndpointResolverWithOptions) {
		ep, err := cfg.EndpointResolverWithOptions.ResolveEndpoint("sqs", "eu-west-2")
		assert.NoError(t, err)
		assert.Equal(t, "http://localhost:4566", ep.URL)
		assert.Equal(t, "eu-west-2", ep.SigningRegion)
	}
}

func TestEndpointFor_ServiceOverride(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_DYNAMODB_ENDPOINT", "http://localhost:8000")

	assert.Equal(t, "http://localhost:8000", endpointFor("DynamoDB"))
	assert.Equal(t, "http://localhost:4566", endpointFor("SQS"))
	assert.True(t, hasEndpointOverride())
}

func TestStringAttributes_SkipsEmpty(t *testing.T) {
	assert.Nil(t, stringAttributes(nil))

	attrs := stringAttributes(map[string]string{"eventType": "transaction_created", "method": ""})
	assert.Len(t, attrs, 1)
	assert.Equal(t, "String", *attrs["eventType"].DataType)
	assert.Equal(t, "transaction_created", *attrs["eventType"].StringValue)
}

func TestReceiveBackoff(t *testing.T) {
	assert.Equal(t, time.Second, receiveBackoff(1))
	assert.Equal(t, 2*time.Second, receiveBackoff(2))
	assert.Equal(t, 16*time.Second, receiveBackoff(5))
	assert.Equal(t, maxReceiveBackoff, receiveBackoff(6))
	assert.Equal(t, maxReceiveBackoff, receiveBackoff(50))
}

func TestParseSecretMap(t *testing.T) {
	m, err := parseSecretMap("ledger/AES_KEYS", `{"AES_KEY_HEX":"aa","AES_IV_HEX":"bb"}`)
	assert.NoError(t, err)
	assert.Equal(t, "aa", m["AES_KEY_HEX"])

	_, err = parseSecretMap("ledger/AES_KEYS", "")
	assert.Error(t, err)

	_, err = parseSecretMap("ledger/AES_KEYS", `{"nested":{"a":1}}`)
	assert.Error(t, err)
}

func TestSecretsClient_CacheExpires(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := &SecretsClient{now: func() time.Time { return now }, cache: map[string]cachedSecret{
		"ledger/DB_CREDENTIALS": {values: map[string]string{"POSTGRES_USER": "u"}, fetched: now},
	}}

	got, ok := s.cached("ledger/DB_CREDENTIALS")
	assert.True(t, ok)
	assert.Equal(t, "u", got["POSTGRES_USER"])

	now = now.Add(secretCacheTTL + time.Second)
	_, ok = s.cached("ledger/DB_CREDENTIALS")
	assert.False(t, ok)
}
