package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/interfaces/repository"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
	client "messenger-connector/internal/pkg"
)

// AirtableConfig holds the connection settings shared by every table.
type AirtableConfig struct {
	APIURL   string
	APIKey   string
	BaseID   string
	Attempts uint
}

// AirtableRepository stores entities of type T as Airtable records. Entity
// JSON field names are the Airtable column names.
type AirtableRepository[T any] struct {
	config     AirtableConfig
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewAirtableRepository[T any](config AirtableConfig, httpClient *http.Client, log *logger.Logger, m *metrics.Metrics) *AirtableRepository[T] {
	if config.Attempts == 0 {
		config.Attempts = 3
	}
	return &AirtableRepository[T]{
		config:     config,
		httpClient: httpClient,
		logger:     log.With(logrus.Fields{"component": "airtable"}),
		metrics:    m,
	}
}

var _ repository.Repository[struct{}] = (*AirtableRepository[struct{}])(nil)

func (r *AirtableRepository[T]) Create(ctx context.Context, table string, entity T) (T, error) {
	var zero T
	fields, err := json.Marshal(entity)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal fields: %w", err)
	}

	payload := dto.AirtableWriteRequest{
		Records:  []dto.AirtableRecord{{Fields: fields}},
		Typecast: true,
	}

	var res dto.AirtableListResponse
	if err := r.do(ctx, table, "create", http.MethodPost, r.tableURL(table), payload, &res); err != nil {
		return zero, err
	}
	if len(res.Records) == 0 {
		return zero, fmt.Errorf("airtable create on %s returned no records", table)
	}
	return decodeRecord[T](res.Records[0])
}

func (r *AirtableRepository[T]) Update(ctx context.Context, table string, id string, entity T) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("airtable update on %s: empty record id", table)
	}
	fields, err := json.Marshal(entity)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal fields: %w", err)
	}

	payload := dto.AirtableWriteRequest{Fields: fields, Typecast: true}

	var record dto.AirtableRecord
	if err := r.do(ctx, table, "update", http.MethodPatch, r.recordURL(table, id), payload, &record); err != nil {
		return zero, err
	}
	return decodeRecord[T](record)
}

func (r *AirtableRepository[T]) Delete(ctx context.Context, table string, id string) error {
	return r.do(ctx, table, "delete", http.MethodDelete, r.recordURL(table, id), nil, nil)
}

// FindOne returns the first record whose field equals value.
func (r *AirtableRepository[T]) FindOne(ctx context.Context, table string, field string, value string) (T, error) {
	var zero T
	query := url.Values{}
	query.Set("filterByFormula", EqualsFormula(field, value))
	query.Set("maxRecords", "1")

	var res dto.AirtableListResponse
	if err := r.do(ctx, table, "find", http.MethodGet, r.tableURL(table)+"?"+query.Encode(), nil, &res); err != nil {
		return zero, err
	}
	if len(res.Records) == 0 {
		return zero, repository.ErrNotFound
	}
	return decodeRecord[T](res.Records[0])
}

// FindAll pages through every record of the table.
func (r *AirtableRepository[T]) FindAll(ctx context.Context, table string) ([]T, error) {
	var entities []T
	offset := ""
	for {
		query := url.Values{}
		query.Set("pageSize", "100")
		if offset != "" {
			query.Set("offset", offset)
		}

		var res dto.AirtableListResponse
		if err := r.do(ctx, table, "list", http.MethodGet, r.tableURL(table)+"?"+query.Encode(), nil, &res); err != nil {
			return nil, err
		}
		for _, record := range res.Records {
			entity, err := decodeRecord[T](record)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		}

		if res.Offset == "" {
			return entities, nil
		}
		offset = res.Offset
	}
}

// EqualsFormula builds a filterByFormula expression matching field == value.
func EqualsFormula(field, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return fmt.Sprintf("{%s}='%s'", field, escaped)
}

func (r *AirtableRepository[T]) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", r.config.APIURL, url.PathEscape(r.config.BaseID), url.PathEscape(table))
}

func (r *AirtableRepository[T]) recordURL(table, id string) string {
	return r.tableURL(table) + "/" + url.PathEscape(id)
}

func (r *AirtableRepository[T]) do(ctx context.Context, table, op, method, endpoint string, payload any, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	start := time.Now()
	data, err := client.DoWithRetry(ctx, r.httpClient, r.config.Attempts, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	r.observe(table, op, start, err)
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound && op != "list" {
			return repository.ErrNotFound
		}
		r.logger.Error(fmt.Sprintf("Airtable %s on %s failed: %v", op, table, err))
		return fmt.Errorf("airtable %s %s: %w", op, table, err)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal airtable response: %w", err)
	}
	return nil
}

func (r *AirtableRepository[T]) observe(table, op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.StoreRequests.WithLabelValues(table, op, metrics.Status(err)).Inc()
	r.metrics.StoreLatency.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

func decodeRecord[T any](record dto.AirtableRecord) (T, error) {
	var entity T
	if len(record.Fields) > 0 {
		if err := json.Unmarshal(record.Fields, &entity); err != nil {
			return entity, fmt.Errorf("failed to unmarshal record %s: %w", record.ID, err)
		}
	}
	setID(&entity, record.ID)
	return entity, nil
}
