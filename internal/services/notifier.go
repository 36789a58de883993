package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/utils"
)

var _ order.Notifier = (*Notifier)(nil)

const notificationTypeOrder = "order"

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Publisher diffuse un message sur un canal (Redis PUBLISH).
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NotificationChannel est le canal Redis des notifications d'un utilisateur.
func NotificationChannel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

// Notifier enregistre une notification à chaque changement de statut,
// la pousse en temps réel et prévient l'acheteur par e-mail.
type Notifier struct {
	store     NotificationStore
	users     UserLookup
	publisher Publisher
	mailer    utils.Mailer
	logger    *zap.Logger
}

func NewNotifier(store NotificationStore, users UserLookup, publisher Publisher, mailer utils.Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{
		store:     store,
		users:     users,
		publisher: publisher,
		mailer:    mailer,
		logger:    logger,
	}
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o models.Order) {
	note := &models.Notification{
		UserID:  o.UserID,
		Type:    notificationTypeOrder,
		Message: utils.StatusMessage(o),
	}
	if err := n.store.Create(ctx, note); err != nil {
		n.logger.Error("❌ Erreur création notification", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}

	if payload, err := json.Marshal(note); err == nil {
		if err := n.publisher.Publish(ctx, NotificationChannel(o.UserID), payload).Err(); err != nil {
			n.logger.Warn("⚠️ Publication notification échouée", zap.Error(err))
		}
	}

	user, err := n.users.FindByID(ctx, o.UserID)
	if err != nil {
		n.logger.Warn("⚠️ Acheteur introuvable pour l'e-mail de statut", zap.String("user_id", o.UserID.String()), zap.Error(err))
		return
	}
	utils.SendAsync(n.mailer, n.logger, utils.OrderStatusEmail(o), user.Email)
}
