package services

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
)

// ProductIndex indexe et recherche les produits dans Elasticsearch.
// Avec un client nil, l'indexation est ignorée et Enabled renvoie false.
type ProductIndex struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

func NewProductIndex(client *elasticsearch.Client, index string, logger *zap.Logger) *ProductIndex {
	if index == "" {
		index = "products"
	}
	return &ProductIndex{client: client, index: index, logger: logger}
}

func (i *ProductIndex) Enabled() bool { return i.client != nil }

type productDocument struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id,omitempty"`
	ParentID    string `json:"category_parent_id,omitempty"`
	Price       string `json:"price"`
	CreatedAt   string `json:"created_at"`
}

// Index écrit le document du produit.
func (i *ProductIndex) Index(ctx context.Context, p models.Product) error {
	if i.client == nil {
		return nil
	}

	doc := productDocument{
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if p.Category != nil {
		doc.CategoryID = p.Category.ID.String()
		if p.Category.ParentID != nil {
			doc.ParentID = p.Category.ParentID.String()
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode product")
	}

	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: p.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, "index product")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("index product: %s", res.String())
	}
	return nil
}

// IndexAsync indexe sans bloquer la requête ; les échecs sont loggés.
func (i *ProductIndex) IndexAsync(ctx context.Context, p models.Product) {
	if i.client == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := i.Index(ctx, p); err != nil {
			i.logger.Warn("⚠️ Indexation Elasticsearch échouée", zap.String("product_id", p.ID.String()), zap.Error(err))
			return
		}
		i.logger.Debug("✅ Produit indexé", zap.String("product_id", p.ID.String()))
	}()
}

// Delete retire le produit de l'index.
func (i *ProductIndex) Delete(ctx context.Context, id uuid.UUID) {
	if i.client == nil {
		return
	}
	res, err := esapi.DeleteRequest{Index: i.index, DocumentID: id.String()}.Do(ctx, i.client)
	if err != nil {
		i.logger.Warn("⚠️ Suppression Elasticsearch échouée", zap.String("product_id", id.String()), zap.Error(err))
		return
	}
	res.Body.Close()
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

// Search renvoie les identifiants d'une page de résultats et le total.
func (i *ProductIndex) Search(ctx context.Context, query string, categoryID *uuid.UUID, page models.Page) ([]uuid.UUID, int, error) {
	if i.client == nil {
		return nil, 0, errors.New("elasticsearch is not configured")
	}

	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "description"},
			},
		},
	}
	if categoryID != nil {
		boolQuery["filter"] = map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"term": map[string]any{"category_id": categoryID.String()}},
					map[string]any{"term": map[string]any{"category_parent_id": categoryID.String()}},
				},
				"minimum_should_match": 1,
			},
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{
		"from":    page.Offset(),
		"size":    page.Size,
		"_source": false,
		"query":   map[string]any{"bool": boolQuery},
	}); err != nil {
		return nil, 0, errors.Wrap(err, "encode query")
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
		i.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "search products")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, errors.Errorf("search products: %s", res.String())
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, 0, errors.Wrap(err, "decode search")
	}

	ids := make([]uuid.UUID, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, out.Hits.Total.Value, nil
}
