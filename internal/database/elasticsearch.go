package database

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mesikahq/patient-care-portal/internal/config"
)

// NewElasticsearch returns a client for the audit index, or nil when no
// addresses are configured.
func NewElasticsearch(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return client, nil
}
