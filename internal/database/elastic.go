package database

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-faster/errors"

	"marketplace_back_end/internal/config"
)

// NewElastic crée le client Elasticsearch et vérifie le cluster.
// Renvoie nil, nil quand ELASTIC_URL n'est pas renseigné.
func NewElastic(cfg config.Elastic) (*elasticsearch.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create elasticsearch client")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch info")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("elasticsearch info: %s", res.Status())
	}
	return client, nil
}
