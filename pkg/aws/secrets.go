package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const secretCacheTTL = 10 * time.Minute

type cachedSecret struct {
	values  map[string]string
	fetched time.Time
}

// SecretsClient reads JSON key/value secrets, caching each one for
// secretCacheTTL so rotated values are picked up eventually.
type SecretsClient struct {
	client *secretsmanager.Client
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSecret
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return &SecretsClient{
		client: secretsmanager.NewFromConfig(cfg),
		now:    time.Now,
		cache:  make(map[string]cachedSecret),
	}
}

// GetSecretMap returns the secret's JSON object. Non-string values are rejected.
func (s *SecretsClient) GetSecretMap(ctx context.Context, name string) (map[string]string, error) {
	if values, ok := s.cached(name); ok {
		return values, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", name, err)
	}
	values, err := parseSecretMap(name, sdkaws.ToString(out.SecretString))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = cachedSecret{values: values, fetched: s.now()}
	s.mu.Unlock()
	return values, nil
}

func (s *SecretsClient) cached(name string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[name]
	if !ok || s.now().Sub(c.fetched) > secretCacheTTL {
		return nil, false
	}
	return c.values, true
}

func parseSecretMap(name, raw string) (map[string]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("secret %s has no string value", name)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a flat JSON object: %w", name, err)
	}
	return values, nil
}
