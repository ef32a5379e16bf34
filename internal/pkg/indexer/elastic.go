package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sebastienferry/mongolastic/internal/pkg/config"
	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
)

type bulkAction struct {
	Index struct {
		Id string `json:"_id,omitempty"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkResponseItem `json:"items"`
}

type bulkResponseItem struct {
	Id     string `json:"_id"`
	Status int    `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// ElasticIndexer submits every page as a single _bulk request.
type ElasticIndexer struct {
	Client    *elasticsearch.Client
	IndexName string
}

func NewElasticClient(cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

func NewElasticIndexer(client *elasticsearch.Client, index string) *ElasticIndexer {
	return &ElasticIndexer{
		Client:    client,
		IndexName: index,
	}
}

// Index sends the page. Documents rejected by the engine are counted and
// logged; a failed request fails the whole page.
func (w *ElasticIndexer) Index(ctx context.Context, items []*bson.D) (interfaces.BulkResult, error) {

	var result interfaces.BulkResult = interfaces.BulkResult{}
	if len(items) == 0 {
		log.Debug("no documents to index")
		return result, nil
	}

	body, err := w.bulkBody(items)
	if err != nil {
		result.ErrorCount = len(items)
		return result, err
	}

	res, err := w.Client.Bulk(bytes.NewReader(body),
		w.Client.Bulk.WithIndex(w.IndexName),
		w.Client.Bulk.WithContext(ctx))
	if err != nil {
		log.Error("bulk request failed: ", err)
		result.ErrorCount = len(items)
		return result, err
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		result.ErrorCount = len(items)
		return result, fmt.Errorf("bulk request failed: %s: %s", res.Status(), bytes.TrimSpace(msg))
	}

	var response bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		result.ErrorCount = len(items)
		return result, fmt.Errorf("error decoding the bulk response: %w", err)
	}

	for _, item := range response.Items {
		for action, status := range item {
			if status.Status > 299 {
				result.ErrorCount++
				log.ErrorWithFields("document rejected", log.Fields{
					"index":  w.IndexName,
					"action": action,
					"id":     status.Id,
					"status": status.Status,
					"type":   status.Error.Type,
					"reason": status.Error.Reason,
				})
				continue
			}
			result.IndexedCount++
		}
	}
	return result, nil
}

func (w *ElasticIndexer) Ping(ctx context.Context) error {
	res, err := w.Client.Ping(w.Client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping failed: %s", res.Status())
	}
	return nil
}

// Builds the newline delimited body: an action line then the document.
func (w *ElasticIndexer) bulkBody(items []*bson.D) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range items {
		id, doc, _ := SplitId(*item)

		var action bulkAction
		action.Index.Id = id
		meta, err := json.Marshal(action)
		if err != nil {
			return nil, err
		}

		data, err := ToJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("error encoding document %s: %w", id, err)
		}

		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
