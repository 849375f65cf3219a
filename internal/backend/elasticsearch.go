package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// defaultRequestTimeout/defaultSearchTimeout are the §6.5/§5 fallbacks used
// when ESConfig leaves the corresponding field zero.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultSearchTimeout  = 600 * time.Second

	defaultBulkMaxItems = 1000
	defaultBulkMaxBytes = 5 * 1024 * 1024
)

// ESConfig configures the Elasticsearch-backed adapter (§6.5).
type ESConfig struct {
	Addresses []string
	APIKey    string
	Username  string
	Password  string

	// RequestTimeout bounds every call except MultiSearch (§6.5
	// request_timeout). Zero uses defaultRequestTimeout.
	RequestTimeout time.Duration
	// SearchTimeout bounds MultiSearch alone (§5: "default 600s for the
	// batched multi-search"). Zero uses defaultSearchTimeout.
	SearchTimeout time.Duration

	// BulkMaxItems/BulkMaxBytes bound a single bulk request (§6.5);
	// BulkIndex splits larger batches into multiple requests. Zero uses
	// the defaults.
	BulkMaxItems int
	BulkMaxBytes int
}

// Elasticsearch implements Backend over a real Elasticsearch cluster.
type Elasticsearch struct {
	client         *elasticsearch.Client
	requestTimeout time.Duration
	searchTimeout  time.Duration
	bulkMaxItems   int
	bulkMaxBytes   int
}

// NewElasticsearch builds an Elasticsearch-backed adapter. Exactly one of
// cfg.APIKey or cfg.Username/cfg.Password must be set; Config.Validate
// enforces this before NewElasticsearch is ever called.
func NewElasticsearch(cfg ESConfig) (*Elasticsearch, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = defaultRequestTimeout
	}
	searchTimeout := cfg.SearchTimeout
	if searchTimeout == 0 {
		searchTimeout = defaultSearchTimeout
	}
	bulkMaxItems := cfg.BulkMaxItems
	if bulkMaxItems == 0 {
		bulkMaxItems = defaultBulkMaxItems
	}
	bulkMaxBytes := cfg.BulkMaxBytes
	if bulkMaxBytes == 0 {
		bulkMaxBytes = defaultBulkMaxBytes
	}

	return &Elasticsearch{
		client:         client,
		requestTimeout: requestTimeout,
		searchTimeout:  searchTimeout,
		bulkMaxItems:   bulkMaxItems,
		bulkMaxBytes:   bulkMaxBytes,
	}, nil
}

// withTimeout bounds ctx by the adapter's configured request timeout unless
// ctx already carries an earlier deadline (e.g. the startup ping's own
// timeout in cmd/ragd).
func (e *Elasticsearch) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.requestTimeout)
}

func (e *Elasticsearch) Ping(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: status %s", res.Status())
	}
	return nil
}

func (e *Elasticsearch) CreateCollection(ctx context.Context, id string, mapping Mapping) error {
	body := map[string]any{
		"mappings": map[string]any{
			"_meta":      mapping.Meta,
			"runtime":    mapping.RuntimeField,
			"properties": mapping.Properties,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal create-collection body: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return withRetry(ctx, func() (int, error) {
		res, err := e.client.Indices.Create(
			id,
			e.client.Indices.Create.WithContext(ctx),
			e.client.Indices.Create.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			return res.StatusCode, fmt.Errorf("create collection %q: %s", id, bodyText(res.Body))
		}
		return res.StatusCode, nil
	})
}

func (e *Elasticsearch) DeleteCollection(ctx context.Context, id string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return withRetry(ctx, func() (int, error) {
		res, err := e.client.Indices.Delete(
			[]string{id},
			e.client.Indices.Delete.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			return res.StatusCode, fmt.Errorf("delete collection %q: %s", id, bodyText(res.Body))
		}
		return res.StatusCode, nil
	})
}

func (e *Elasticsearch) PutMapping(ctx context.Context, id string, meta, runtimeField map[string]any) error {
	body := map[string]any{
		"_meta":   meta,
		"runtime": runtimeField,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal put-mapping body: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return withRetry(ctx, func() (int, error) {
		res, err := e.client.Indices.PutMapping(
			[]string{id},
			bytes.NewReader(payload),
			e.client.Indices.PutMapping.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			return res.StatusCode, fmt.Errorf("put mapping %q: %s", id, bodyText(res.Body))
		}
		return res.StatusCode, nil
	})
}

func (e *Elasticsearch) GetMapping(ctx context.Context, pattern string) (map[string]IndexMeta, error) {
	var out map[string]IndexMeta

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := withRetry(ctx, func() (int, error) {
		res, err := e.client.Indices.GetMapping(
			e.client.Indices.GetMapping.WithContext(ctx),
			e.client.Indices.GetMapping.WithIndex(pattern),
			e.client.Indices.GetMapping.WithAllowNoIndices(true),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			if res.StatusCode == 404 {
				out = map[string]IndexMeta{}
				return res.StatusCode, nil
			}
			return res.StatusCode, fmt.Errorf("get mapping %q: %s", pattern, bodyText(res.Body))
		}

		var raw map[string]struct {
			Mappings struct {
				Meta    map[string]any `json:"_meta"`
				Runtime map[string]any `json:"runtime"`
			} `json:"mappings"`
		}
		if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
			return res.StatusCode, fmt.Errorf("decode get-mapping response: %w", err)
		}

		out = make(map[string]IndexMeta, len(raw))
		for index, v := range raw {
			out[index] = IndexMeta{Meta: v.Mappings.Meta, RuntimeField: v.Mappings.Runtime}
		}
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Elasticsearch) Stats(ctx context.Context, pattern string) (map[string]int, error) {
	var out map[string]int

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := withRetry(ctx, func() (int, error) {
		res, err := e.client.Cat.Indices(
			e.client.Cat.Indices.WithContext(ctx),
			e.client.Cat.Indices.WithIndex(pattern),
			e.client.Cat.Indices.WithFormat("json"),
			e.client.Cat.Indices.WithH("index", "docs.count"),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			if res.StatusCode == 404 {
				out = map[string]int{}
				return res.StatusCode, nil
			}
			return res.StatusCode, fmt.Errorf("cat indices %q: %s", pattern, bodyText(res.Body))
		}

		var rows []struct {
			Index     string `json:"index"`
			DocsCount string `json:"docs.count"`
		}
		if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
			return res.StatusCode, fmt.Errorf("decode cat-indices response: %w", err)
		}

		out = make(map[string]int, len(rows))
		for _, row := range rows {
			var count int
			_, _ = fmt.Sscanf(row.DocsCount, "%d", &count)
			out[row.Index] = count
		}
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkIndex submits ops in one or more bulk requests, each bounded by the
// configured bulk_max_items/bulk_max_bytes limits (§6.5). Item errors from
// every chunk are collected and returned together.
func (e *Elasticsearch) BulkIndex(ctx context.Context, ops []BulkOp) ([]BulkItemError, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	var itemErrors []BulkItemError
	var chunk bytes.Buffer
	items := 0

	flush := func() error {
		if items == 0 {
			return nil
		}
		errs, err := e.submitBulk(ctx, chunk.Bytes())
		if err != nil {
			return err
		}
		itemErrors = append(itemErrors, errs...)
		chunk.Reset()
		items = 0
		return nil
	}

	for _, op := range ops {
		encoded, err := encodeBulkOp(op)
		if err != nil {
			return nil, err
		}
		if items > 0 && (items >= e.bulkMaxItems || chunk.Len()+len(encoded) > e.bulkMaxBytes) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		chunk.Write(encoded)
		items++
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return itemErrors, nil
}

// encodeBulkOp renders one op as its action line plus (except for deletes)
// its source line.
func encodeBulkOp(op BulkOp) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	header := map[string]any{"_index": op.Index}
	if op.DocID != "" {
		header["_id"] = op.DocID
	}
	if err := enc.Encode(map[string]any{op.Action: header}); err != nil {
		return nil, fmt.Errorf("encode bulk action: %w", err)
	}
	if op.Action != "delete" {
		if err := enc.Encode(op.Source); err != nil {
			return nil, fmt.Errorf("encode bulk source: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func (e *Elasticsearch) submitBulk(ctx context.Context, payload []byte) ([]BulkItemError, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var itemErrors []BulkItemError
	err := withRetry(ctx, func() (int, error) {
		res, err := e.client.Bulk(
			bytes.NewReader(payload),
			e.client.Bulk.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			return res.StatusCode, fmt.Errorf("bulk index: %s", bodyText(res.Body))
		}

		var parsed struct {
			Errors bool `json:"errors"`
			Items  []map[string]struct {
				ID    string `json:"_id"`
				Error *struct {
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"items"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return res.StatusCode, fmt.Errorf("decode bulk response: %w", err)
		}

		if parsed.Errors {
			for _, item := range parsed.Items {
				for _, v := range item {
					if v.Error != nil {
						itemErrors = append(itemErrors, BulkItemError{DocID: v.ID, Error: v.Error.Reason})
					}
				}
			}
		}
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return itemErrors, nil
}

func (e *Elasticsearch) UpdateDoc(ctx context.Context, id, docID string, fields map[string]any) error {
	payload, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("marshal update-doc body: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return withRetry(ctx, func() (int, error) {
		res, err := e.client.Update(
			id,
			docID,
			bytes.NewReader(payload),
			e.client.Update.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			if res.StatusCode == 404 {
				return res.StatusCode, fmt.Errorf("update document %q in %q: %w", docID, id, ErrNotFound)
			}
			return res.StatusCode, fmt.Errorf("update document %q in %q: %s", docID, id, bodyText(res.Body))
		}
		return res.StatusCode, nil
	})
}

func (e *Elasticsearch) DeleteDoc(ctx context.Context, id, docID string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return withRetry(ctx, func() (int, error) {
		res, err := e.client.Delete(
			id,
			docID,
			e.client.Delete.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			if res.StatusCode == 404 {
				return res.StatusCode, fmt.Errorf("delete document %q from %q: %w", docID, id, ErrNotFound)
			}
			return res.StatusCode, fmt.Errorf("delete document %q from %q: %s", docID, id, bodyText(res.Body))
		}
		return res.StatusCode, nil
	})
}

func (e *Elasticsearch) MultiSearch(ctx context.Context, queries []SearchQuery) ([]SearchResponse, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, q := range queries {
		if err := enc.Encode(map[string]any{"index": q.IndexPattern}); err != nil {
			return nil, fmt.Errorf("encode msearch header: %w", err)
		}
		if err := enc.Encode(q.Body); err != nil {
			return nil, fmt.Errorf("encode msearch body: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	var out []SearchResponse
	err := withRetry(ctx, func() (int, error) {
		res, err := e.client.Msearch(
			bytes.NewReader(buf.Bytes()),
			e.client.Msearch.WithContext(ctx),
		)
		if err != nil {
			return 0, err
		}
		defer res.Body.Close()

		if res.IsError() {
			return res.StatusCode, fmt.Errorf("multi-search: %s", bodyText(res.Body))
		}

		var parsed struct {
			Responses []struct {
				Hits struct {
					Hits []struct {
						Index     string              `json:"_index"`
						ID        string              `json:"_id"`
						Score     float64             `json:"_score"`
						Source    map[string]any      `json:"_source"`
						Fields    map[string]any      `json:"fields"`
						Highlight map[string][]string `json:"highlight"`
					} `json:"hits"`
				} `json:"hits"`
				Aggregations struct {
					KnowledgeBaseName struct {
						Buckets []struct {
							Key      string `json:"key"`
							DocCount int    `json:"doc_count"`
						} `json:"buckets"`
					} `json:"knowledge_base_name"`
				} `json:"aggregations"`
				Error map[string]any `json:"error"`
			} `json:"responses"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return res.StatusCode, fmt.Errorf("decode msearch response: %w", err)
		}

		out = make([]SearchResponse, len(parsed.Responses))
		for i, r := range parsed.Responses {
			resp := SearchResponse{}
			for _, h := range r.Hits.Hits {
				resp.Hits = append(resp.Hits, Hit{
					Index:     h.Index,
					ID:        h.ID,
					Score:     h.Score,
					Source:    h.Source,
					Fields:    h.Fields,
					Highlight: h.Highlight,
				})
			}
			for _, b := range r.Aggregations.KnowledgeBaseName.Buckets {
				resp.Buckets = append(resp.Buckets, Bucket{Key: b.Key, Count: b.DocCount})
			}
			out[i] = resp
		}
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func bodyText(r io.Reader) string {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	return string(b)
}
