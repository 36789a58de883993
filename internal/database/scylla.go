package database

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/gocql/gocql"

	"marketplace_back_end/internal/config"
)

// NewScyllaSession ouvre la session du journal d'audit.
// Renvoie nil, nil quand SCYLLA_HOSTS n'est pas renseigné.
func NewScyllaSession(cfg config.Scylla) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, nil
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.NumConns = 4
	cluster.ReconnectInterval = time.Second
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "create scylla session for %q", cfg.Keyspace)
	}
	return session, nil
}
