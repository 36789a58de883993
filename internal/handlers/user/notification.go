package user

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/services"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// NotificationStore est le stockage des notifications (repository.NotificationRepository).
type NotificationStore interface {
	List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.Notification, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) (*models.Notification, error)
}

// Subscriber ouvre un abonnement Redis pub/sub.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type NotificationHandler struct {
	store      NotificationStore
	subscriber Subscriber
	upgrader   websocket.Upgrader
	pageSize   int
	logger     *zap.Logger
}

// NewNotificationHandler crée le handler. Les origines websocket acceptées
// sont celles du CORS ; une liste vide les accepte toutes.
func NewNotificationHandler(store NotificationStore, subscriber Subscriber, origins []string, pageSize int, logger *zap.Logger) *NotificationHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &NotificationHandler{
		store:      store,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		pageSize: pageSize,
		logger:   logger,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	page, ok := handlers.PageParam(c, h.pageSize)
	if !ok {
		return
	}
	items, total, err := h.store.List(c.Request.Context(), middleware.Actor(c).UserID, page)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	handlers.WritePage(c, models.NewPageResult(items, total, page), page)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, n)
}

type readRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}

// Update marque la notification lue ou non lue.
func (h *NotificationHandler) Update(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	var req readRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	updated, err := h.store.SetRead(c.Request.Context(), n.ID, *req.IsRead)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *NotificationHandler) owned(c *gin.Context) (*models.Notification, bool) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}
	n, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return nil, false
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return nil, false
	}
	if n.UserID != middleware.Actor(c).UserID {
		handlers.Forbidden(c)
		return nil, false
	}
	return n, true
}

// Stream pousse les nouvelles notifications sur un websocket.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := middleware.Actor(c).UserID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("❌ Erreur upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.subscriber.Subscribe(ctx, services.NotificationChannel(userID))
	defer pubsub.Close()

	// Lecture en tâche de fond : détecte la fermeture côté client.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, websocket.TextMessage, []byte(`{"type":"connected"}`)); err != nil {
		return
	}
	h.logger.Debug("🔌 WebSocket notifications ouvert", zap.String("user_id", userID.String()))

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug("❌ Erreur envoi WebSocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *NotificationHandler) write(conn *websocket.Conn, kind int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(kind, data)
}
