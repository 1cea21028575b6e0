package aws

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadAWSConfig loads the SDK config. Explicit access keys in the environment
// take precedence over the default credential chain. Endpoint overrides point
// clients at LocalStack: AWS_<SERVICE>_ENDPOINT for one service (SQS, SNS, S3,
// DYNAMODB, SECRETSMANAGER, ...), AWS_ENDPOINT for everything else.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	accessKey, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secret, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if !hasEndpointOverride() {
		return cfg, nil
	}

	signingRegion := cfg.Region
	cfg.EndpointResolverWithOptions = sdkaws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (sdkaws.Endpoint, error) {
		url := endpointFor(service)
		if url == "" {
			// fall through to the SDK default
			return sdkaws.Endpoint{}, &sdkaws.EndpointNotFoundError{}
		}
		sr := signingRegion
		if sr == "" {
			sr = region
		}
		return sdkaws.Endpoint{
			URL:               url,
			SigningRegion:     sr,
			HostnameImmutable: true,
		}, nil
	})
	return cfg, nil
}

func endpointFor(service string) string {
	key := "AWS_" + strings.ToUpper(strings.ReplaceAll(service, " ", "")) + "_ENDPOINT"
	return firstNonEmpty(os.Getenv(key), os.Getenv("AWS_ENDPOINT"))
}

func hasEndpointOverride() bool {
	if os.Getenv("AWS_ENDPOINT") != "" {
		return true
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "AWS_") && strings.Contains(kv, "_ENDPOINT=") {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
