package utils

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
)

// Actions d'audit
const (
	ActionOrderCheckout   = "order.checkout"
	ActionOrderTransition = "order.transition"
	ActionCouponApply     = "coupon.apply"
	ActionCouponCreate    = "coupon.create"
	ActionCouponUpdate    = "coupon.update"
	ActionCouponDelete    = "coupon.delete"
)

// Ressources d'audit
const (
	ResourceOrder  = "order"
	ResourceCoupon = "coupon"
)

// Journal enregistre les actions sensibles. Un échec d'écriture ne doit
// jamais faire échouer l'opération métier.
type Journal interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// NewJournal renvoie le journal ScyllaDB, ou un journal zap sans session.
func NewJournal(session *gocql.Session, logger *zap.Logger) Journal {
	if session == nil {
		return &LogJournal{logger: logger}
	}
	return &ScyllaJournal{session: session, logger: logger}
}

type ScyllaJournal struct {
	session *gocql.Session
	logger  *zap.Logger
}

const auditTableCQL = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id timeuuid PRIMARY KEY,
		user_id text,
		action text,
		resource text,
		resource_id text,
		old_value text,
		new_value text,
		success boolean,
		error_msg text,
		timestamp timestamp
	)`

// EnsureSchema crée la table audit_logs si besoin.
func (j *ScyllaJournal) EnsureSchema(ctx context.Context) error {
	return errors.Wrap(j.session.Query(auditTableCQL).WithContext(ctx).Exec(), "create audit_logs")
}

// Record écrit l'entrée de façon asynchrone.
func (j *ScyllaJournal) Record(ctx context.Context, e models.AuditLog) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		err := j.session.Query(`
			INSERT INTO audit_logs (
				id, user_id, action, resource, resource_id,
				old_value, new_value, success, error_msg, timestamp
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			gocql.UUIDFromTime(e.Timestamp), e.UserID, e.Action, e.Resource, e.ResourceID,
			e.OldValue, e.NewValue, e.Success, e.ErrorMsg, e.Timestamp,
		).WithContext(ctx).Exec()
		if err != nil {
			j.logger.Error("❌ Erreur enregistrement log audit", zap.String("action", e.Action), zap.Error(err))
		}
	}()
}

// LogJournal écrit les entrées d'audit dans les logs applicatifs.
type LogJournal struct {
	logger *zap.Logger
}

func (j *LogJournal) Record(_ context.Context, e models.AuditLog) {
	j.logger.Info("📝 Audit",
		zap.String("user_id", e.UserID),
		zap.String("action", e.Action),
		zap.String("resource", e.Resource),
		zap.String("resource_id", e.ResourceID),
		zap.String("old", e.OldValue),
		zap.String("new", e.NewValue),
		zap.Bool("success", e.Success),
	)
}
