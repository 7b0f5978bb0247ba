// Package search indexes the game encyclopedia in Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"meeplehall/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// IndexGames is the games index name.
const IndexGames = "games"

// Client wraps the Elasticsearch client with game-specific operations.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient connects to the Elasticsearch node at url.
func NewClient(url string) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	res.Body.Close()

	return &Client{es: es, index: IndexGames}, nil
}

// GameQuery filters a game search.
type GameQuery struct {
	Text     string
	Category string
	Players  int
	Limit    int
	Offset   int
}

// GameDocument is the indexed form of a game.
type GameDocument struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	Designer        string    `json:"designer"`
	Publisher       string    `json:"publisher"`
	YearPublished   int       `json:"year_published"`
	MinPlayers      int       `json:"min_players"`
	MaxPlayers      int       `json:"max_players"`
	PlayTimeMinutes int       `json:"play_time_minutes"`
	Categories      []string  `json:"categories"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewGameDocument converts a game row into its search document.
func NewGameDocument(g *models.Game) GameDocument {
	return GameDocument{
		ID:              g.ID,
		Name:            g.Name,
		Slug:            g.Slug,
		Description:     g.Description,
		Designer:        g.Designer,
		Publisher:       g.Publisher,
		YearPublished:   g.YearPublished,
		MinPlayers:      g.MinPlayers,
		MaxPlayers:      g.MaxPlayers,
		PlayTimeMinutes: g.PlayTimeMinutes,
		Categories:      g.CategoryList(),
		UpdatedAt:       g.UpdatedAt,
	}
}

// EnsureIndex creates the games index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":   map[string]interface{}{"type": "keyword"},
				"slug": map[string]interface{}{"type": "keyword"},
				"name": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{"type": "keyword"},
					},
				},
				"description":       map[string]interface{}{"type": "text", "analyzer": "standard"},
				"designer":          map[string]interface{}{"type": "text"},
				"publisher":         map[string]interface{}{"type": "text"},
				"year_published":    map[string]interface{}{"type": "integer"},
				"min_players":       map[string]interface{}{"type": "integer"},
				"max_players":       map[string]interface{}{"type": "integer"},
				"play_time_minutes": map[string]interface{}{"type": "integer"},
				"categories":        map[string]interface{}{"type": "keyword"},
				"updated_at":        map[string]interface{}{"type": "date"},
			},
		},
	}
	return c.createIndex(ctx, c.index, mapping)
}

func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

// IndexGame upserts the document for g.
func (c *Client) IndexGame(ctx context.Context, g *models.Game) error {
	body, err := json.Marshal(NewGameDocument(g))
	if err != nil {
		return fmt.Errorf("failed to marshal game document: %w", err)
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(strconv.FormatUint(uint64(g.ID), 10)),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index game: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("indexing game", res.Status(), res.Body)
	}
	return nil
}

// DeleteGame removes the document for id. Missing documents are not an error.
func (c *Client) DeleteGame(ctx context.Context, id uint) error {
	res, err := c.es.Delete(c.index, strconv.FormatUint(uint64(id), 10), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return responseError("deleting game", res.Status(), res.Body)
	}
	return nil
}

// BuildGameQuery renders q as an Elasticsearch query body.
func BuildGameQuery(q GameQuery) map[string]interface{} {
	var must []map[string]interface{}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     text,
				"fields":    []string{"name^3", "designer^1.5", "publisher", "description^0.5"},
				"fuzziness": "AUTO",
			},
		})
	}

	var filter []map[string]interface{}
	if q.Category != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"categories": strings.ToLower(q.Category)},
		})
	}
	if q.Players > 0 {
		filter = append(filter,
			map[string]interface{}{"range": map[string]interface{}{"min_players": map[string]interface{}{"lte": q.Players}}},
			map[string]interface{}{"range": map[string]interface{}{"max_players": map[string]interface{}{"gte": q.Players}}},
		)
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	} else {
		boolQuery["must"] = []map[string]interface{}{{"match_all": map[string]interface{}{}}}
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"name.keyword": map[string]interface{}{"order": "asc"}},
		},
		"from":    q.Offset,
		"size":    q.Limit,
		"_source": false,
	}
}

// SearchGames returns the ids of matching games in rank order and the total hit count.
func (c *Client) SearchGames(ctx context.Context, q GameQuery) ([]uint, int64, error) {
	queryJSON, err := json.Marshal(BuildGameQuery(q))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, responseError("searching games", res.Status(), res.Body)
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uint, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, searchResp.Hits.Total.Value, nil
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error response [%s]", status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}
