package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess EventType = "ACCESS"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
	EventLogin  EventType = "LOGIN"
	EventAlert  EventType = "ALERT"
)

type AuditEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"event_type"`
	UserID      string          `json:"user_id"`
	Action      string          `json:"action"`
	Resource    string          `json:"resource"`
	ResourceID  string          `json:"resource_id"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	RequestID   string          `json:"request_id"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Sensitivity string          `json:"sensitivity"`
}

type Service interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
	QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error)
}

type service struct {
	es          *elasticsearch.Client
	indexPrefix string
	logger      *logrus.Logger
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// NewService returns an audit service that indexes every event into
// Elasticsearch under <indexPrefix><yyyy.mm> and mirrors it to logrus.
func NewService(esClient *elasticsearch.Client, indexPrefix string) Service {
	if indexPrefix == "" {
		indexPrefix = "pcp_audit_"
	}
	return &service{
		es:          esClient,
		indexPrefix: indexPrefix,
		logger:      newLogger(),
	}
}

func (s *service) LogEvent(ctx context.Context, event *AuditEvent) error {
	fill(ctx, event)

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	index := s.indexPrefix + event.Timestamp.Format("2006.01")
	res, err := s.es.Index(
		index,
		strings.NewReader(string(payload)),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to index audit event")
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		err := fmt.Errorf("index audit event: %s", res.Status())
		s.logger.WithError(err).Error("Failed to index audit event")
		return err
	}

	logEvent(s.logger, event)
	return nil
}

func (s *service) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": buildQueryFilters(filters),
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "desc",
				},
			},
		},
		"from": from,
		"size": size,
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.indexPrefix+"*"),
		s.es.Search.WithBody(strings.NewReader(string(queryJSON))),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search audit events: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}

	events := make([]AuditEvent, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		events[i] = hit.Source
	}

	return events, nil
}

// buildQueryFilters matches each field exactly; a []string value matches any
// of its entries.
func buildQueryFilters(filters map[string]interface{}) []map[string]interface{} {
	must := make([]map[string]interface{}, 0, len(filters))

	for field, value := range filters {
		clause := "match"
		if _, ok := value.([]string); ok {
			clause = "terms"
		}
		must = append(must, map[string]interface{}{
			clause: map[string]interface{}{
				field: value,
			},
		})
	}

	return must
}

// logService is used when no Elasticsearch cluster is configured. Events are
// only written to the structured log and cannot be queried back.
type logService struct {
	logger *logrus.Logger
}

func NewLogService() Service {
	return &logService{logger: newLogger()}
}

func (s *logService) LogEvent(ctx context.Context, event *AuditEvent) error {
	fill(ctx, event)
	logEvent(s.logger, event)
	return nil
}

func (s *logService) QueryEvents(context.Context, map[string]interface{}, int, int) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

func fill(ctx context.Context, event *AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	meta := metadataFrom(ctx)
	if event.UserID == "" {
		event.UserID = meta.actor
	}
	if event.RequestID == "" {
		event.RequestID = meta.requestID
	}
	if event.IPAddress == "" {
		event.IPAddress = meta.ipAddress
	}
	if event.UserAgent == "" {
		event.UserAgent = meta.userAgent
	}
	if event.Sensitivity == "" {
		event.Sensitivity = "PHI"
	}
}

func logEvent(logger *logrus.Logger, event *AuditEvent) {
	logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"ip_address":  event.IPAddress,
		"request_id":  event.RequestID,
		"status":      event.Status,
		"sensitivity": event.Sensitivity,
	}).Info("Audit event logged")
}

// Details marshals a detail map for AuditEvent.Details, dropping it on error.
func Details(details map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return raw
}
