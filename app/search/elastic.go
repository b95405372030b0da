package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker"
)

var _ Engine = (*ElasticEngine)(nil)

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// ElasticEngine implements Engine on Elasticsearch.
// Every call goes through a circuit breaker so a degraded cluster fails fast.
type ElasticEngine struct {
	client  *elasticsearch.Client
	index   string
	breaker *gobreaker.CircuitBreaker
}

// statusError is a non-2xx response. Only 5xx responses count against the breaker.
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.op, e.status, e.body)
}

func NewElasticEngine(cfg ElasticConfig) (*ElasticEngine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = IndexName
	}

	settings := gobreaker.Settings{
		Name:        "elasticsearch",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &ElasticEngine{
		client:  client,
		index:   index,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

func (e *ElasticEngine) Put(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = e.do("index document", func() (*esapi.Response, error) {
		return e.client.Index(e.index, bytes.NewReader(body),
			e.client.Index.WithDocumentID(strconv.FormatInt(doc.ID, 10)),
			e.client.Index.WithContext(ctx),
		)
	})
	return err
}

func (e *ElasticEngine) Delete(ctx context.Context, id int64) error {
	_, err := e.do("delete document", func() (*esapi.Response, error) {
		return e.client.Delete(e.index, strconv.FormatInt(id, 10),
			e.client.Delete.WithContext(ctx),
		)
	})

	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusNotFound {
		return nil
	}
	return err
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (e *ElasticEngine) BulkPut(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]any{"index": map[string]any{"_index": e.index, "_id": strconv.FormatInt(doc.ID, 10)}}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return 0, fmt.Errorf("failed to encode bulk metadata: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return 0, fmt.Errorf("failed to encode bulk document: %w", err)
		}
	}

	data, err := e.do("bulk index", func() (*esapi.Response, error) {
		return e.client.Bulk(bytes.NewReader(buf.Bytes()),
			e.client.Bulk.WithIndex(e.index),
			e.client.Bulk.WithContext(ctx),
		)
	})
	if err != nil {
		return 0, err
	}

	var resp bulkResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for _, result := range item {
				if result.Error != nil {
					return 0, fmt.Errorf("bulk index failed for document %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
				}
			}
		}
		return 0, errors.New("bulk index reported errors")
	}

	return len(docs), nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticEngine) Query(ctx context.Context, q Query) (Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal query: %w", err)
	}

	data, err := e.do("search", func() (*esapi.Response, error) {
		return e.client.Search(
			e.client.Search.WithIndex(e.index),
			e.client.Search.WithBody(bytes.NewReader(body)),
			e.client.Search.WithContext(ctx),
		)
	})
	if err != nil {
		return Result{}, err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := Result{Total: resp.Hits.Total.Value, IDs: make([]int64, 0, len(resp.Hits.Hits))}
	for _, hit := range resp.Hits.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			slog.Warn("Skipping search hit with non-numeric ID", "id", hit.ID)
			continue
		}
		result.IDs = append(result.IDs, id)
	}

	return result, nil
}

// Ping reports liveness. An open breaker answers without touching the network.
func (e *ElasticEngine) Ping(ctx context.Context) bool {
	if e.breaker.State() == gobreaker.StateOpen {
		return false
	}

	_, err := e.do("ping", func() (*esapi.Response, error) {
		return e.client.Ping(e.client.Ping.WithContext(ctx))
	})
	if err != nil {
		slog.Debug("Search engine ping failed", "error", err)
		return false
	}
	return true
}

func (e *ElasticEngine) EnsureIndex(ctx context.Context) error {
	_, err := e.do("check index", func() (*esapi.Response, error) {
		return e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	})
	if err == nil {
		return nil
	}

	var se *statusError
	if !errors.As(err, &se) || se.status != http.StatusNotFound {
		return err
	}

	_, err = e.do("create index", func() (*esapi.Response, error) {
		return e.client.Indices.Create(e.index,
			e.client.Indices.Create.WithBody(strings.NewReader(IndexMapping)),
			e.client.Indices.Create.WithContext(ctx),
		)
	})
	if err != nil {
		return err
	}

	slog.Info("Search index created", "index", e.index)
	return nil
}

// do runs one request through the breaker and returns the body of a 2xx response.
func (e *ElasticEngine) do(op string, request func() (*esapi.Response, error)) ([]byte, error) {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		res, err := request()
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", op, err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", op, err)
		}
		if res.IsError() {
			return nil, &statusError{op: op, status: res.StatusCode, body: truncate(string(data), 256)}
		}
		return data, nil
	})

	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status < http.StatusInternalServerError {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	data, _ := result.([]byte)
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
