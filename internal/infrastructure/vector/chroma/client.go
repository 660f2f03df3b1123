package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mhxia/finsight/internal/core/domain"
)

const (
	textCollection  = "text_index"
	tableCollection = "table_index"
)

// Client speaks the Chroma REST API and maps the two retrieval channels onto
// two collections. Collection IDs are resolved once and cached; Reset discards
// the cached ID so the next call recreates the collection.
type Client struct {
	baseURL    string
	httpClient *http.Client

	idMu sync.Mutex
	ids  map[domain.Channel]string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ids:        make(map[domain.Channel]string),
	}
}

func collectionName(channel domain.Channel) (string, error) {
	switch channel {
	case domain.ChannelText:
		return textCollection, nil
	case domain.ChannelTable:
		return tableCollection, nil
	default:
		return "", fmt.Errorf("unknown channel %q", channel)
	}
}

func (c *Client) Add(ctx context.Context, channel domain.Channel, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("docs/vectors mismatch: %d/%d", len(docs), len(vectors))
	}

	collectionID, err := c.collectionID(ctx, channel)
	if err != nil {
		return err
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	metadatas := make([]domain.Metadata, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		texts[i] = doc.Text
		metadatas[i] = doc.Metadata
	}

	body, err := json.Marshal(map[string]any{
		"ids":        ids,
		"embeddings": vectors,
		"documents":  texts,
		"metadatas":  metadatas,
	})
	if err != nil {
		return fmt.Errorf("marshal add body: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, collectionID)
	if err := c.post(ctx, url, body, nil); err != nil {
		return fmt.Errorf("chroma add to %s: %w", channel, err)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, channel domain.Channel, vector []float32, limit int) ([]domain.ScoredDocument, error) {
	if limit <= 0 {
		return nil, nil
	}
	collectionID, err := c.collectionID(ctx, channel)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        limit,
		"include":          []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	var queryResp struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, collectionID)
	if err := c.post(ctx, url, body, &queryResp); err != nil {
		return nil, fmt.Errorf("chroma query %s: %w", channel, err)
	}
	if len(queryResp.IDs) == 0 {
		return nil, nil
	}

	// Single query embedding, so every section has exactly one row.
	ids := queryResp.IDs[0]
	out := make([]domain.ScoredDocument, 0, len(ids))
	for i, id := range ids {
		doc := domain.Document{ID: id}
		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) {
			doc.Text = queryResp.Documents[0][i]
		}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
			doc.Metadata = domain.Metadata(queryResp.Metadatas[0][i])
		}
		similarity := 0.0
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			// Cosine distance, so similarity is its complement.
			similarity = 1 - queryResp.Distances[0][i]
		}
		out = append(out, domain.ScoredDocument{Document: doc, Similarity: similarity})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context, channel domain.Channel) (int, error) {
	collectionID, err := c.collectionID(ctx, channel)
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/count", c.baseURL, collectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create count request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("chroma count request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("chroma count status: %s", resp.Status)
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return count, nil
}

func (c *Client) DeleteByFilename(ctx context.Context, channel domain.Channel, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return nil
	}
	collectionID, err := c.collectionID(ctx, channel)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"where": map[string]any{
			domain.MetaSourceFile: map[string]any{"$eq": filename},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/delete", c.baseURL, collectionID)
	if err := c.post(ctx, url, body, nil); err != nil {
		return fmt.Errorf("chroma delete from %s: %w", channel, err)
	}
	return nil
}

func (c *Client) Reset(ctx context.Context, channel domain.Channel) error {
	name, err := collectionName(channel)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma reset request: %w", err)
	}
	defer resp.Body.Close()
	// 404 means the collection never existed, which is an acceptable reset.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("chroma reset status: %s", resp.Status)
	}

	c.idMu.Lock()
	delete(c.ids, channel)
	c.idMu.Unlock()
	return nil
}

// collectionID resolves and caches the collection UUID for one channel,
// creating the collection on first use with a cosine HNSW space.
func (c *Client) collectionID(ctx context.Context, channel domain.Channel) (string, error) {
	c.idMu.Lock()
	if id, ok := c.ids[channel]; ok {
		c.idMu.Unlock()
		return id, nil
	}
	c.idMu.Unlock()

	name, err := collectionName(channel)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"name":          name,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
		"get_or_create": true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ensure collection body: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/api/v1/collections", c.baseURL)
	if err := c.post(ctx, url, body, &created); err != nil {
		return "", fmt.Errorf("chroma ensure collection %s: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("chroma ensure collection %s: empty collection id", name)
	}

	c.idMu.Lock()
	c.ids[channel] = created.ID
	c.idMu.Unlock()
	return created.ID, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("status %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
