// Package routes déclare la table de routes de l'API.
package routes

import (
	"github.com/gin-gonic/gin"

	"marketplace_back_end/internal/handlers/payement"
	"marketplace_back_end/internal/handlers/product"
	"marketplace_back_end/internal/handlers/user"
	"marketplace_back_end/internal/health"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
)

// Handlers regroupe les handlers câblés dans cmd/server.
type Handlers struct {
	Auth          *user.AuthHandler
	Cart          *user.CartHandler
	Orders        *user.OrderHandler
	Wishlist      *user.WishlistHandler
	Notifications *user.NotificationHandler
	Categories    *product.CategoryHandler
	Products      *product.ProductHandler
	Payments      *payement.PaymentHandler
	Coupons       *payement.CouponHandler
	Webhook       *payement.WebhookHandler
	Health        *health.Health
}

// Middlewares porte les middlewares paramétrés par la configuration.
type Middlewares struct {
	Auth          gin.HandlerFunc
	LoginLimit    gin.HandlerFunc
	RegisterLimit gin.HandlerFunc
	ForgotLimit   gin.HandlerFunc
	APILimit      gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, h Handlers, mw Middlewares) {
	r.GET("/livez", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)

	// Le webhook Stripe n'a ni jeton ni limite : la signature fait foi.
	r.POST("/api/payment/webhook/", h.Webhook.Stripe)

	api := r.Group("/api", mw.APILimit)

	buyer := middleware.RequireRole(models.RoleBuyer)
	seller := middleware.RequireRole(models.RoleSeller, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	// =============================================
	// USERS
	// =============================================
	users := api.Group("/users")
	users.POST("/register/", mw.RegisterLimit, h.Auth.Register)
	users.PATCH("/register/verify/:otp_secret/", h.Auth.Verify)
	users.POST("/login/", mw.LoginLimit, h.Auth.Login)
	users.POST("/token/refresh/", h.Auth.Refresh)
	users.POST("/password/forgot/", mw.ForgotLimit, h.Auth.Forgot)
	users.POST("/password/forgot/verify/:otp_secret/", mw.ForgotLimit, h.Auth.ForgotVerify)
	users.PATCH("/password/reset/", h.Auth.Reset)

	account := users.Group("", mw.Auth)
	account.POST("/logout/", h.Auth.Logout)
	account.GET("/me/", h.Auth.Me)
	account.PATCH("/me/", h.Auth.UpdateMe)
	account.PUT("/password/change/", h.Auth.ChangePassword)

	// =============================================
	// CATALOGUE
	// =============================================
	api.GET("/categories/", h.Categories.List)
	api.GET("/categories/:id/", h.Categories.Get)
	api.GET("/products/", h.Products.List)
	api.GET("/products/:id/", h.Products.Get)

	products := api.Group("/products", mw.Auth, seller)
	products.POST("/", h.Products.Create)
	products.PATCH("/:id/", h.Products.Update)
	products.DELETE("/:id/", h.Products.Delete)
	products.POST("/:id/image/", h.Products.UploadImage)

	// =============================================
	// PANIER ET COMMANDES
	// =============================================
	cart := api.Group("/cart", mw.Auth, buyer)
	cart.GET("/", h.Cart.Get)
	cart.DELETE("/", h.Cart.Clear)
	cart.POST("/items/", h.Cart.AddItem)
	cart.PATCH("/items/:id/", h.Cart.UpdateItem)
	cart.DELETE("/items/:id/", h.Cart.RemoveItem)

	orders := api.Group("/orders", mw.Auth)
	orders.GET("/", buyer, h.Orders.List)
	orders.GET("/history/", buyer, h.Orders.History)
	orders.POST("/checkout/", buyer, h.Orders.Checkout)
	orders.GET("/:id/", h.Orders.Get)
	orders.GET("/:id/invoice/", h.Orders.Invoice)
	orders.PATCH("/:id/status/", admin, h.Orders.UpdateStatus)

	// =============================================
	// PAIEMENT ET COUPONS
	// =============================================
	pay := api.Group("/payment/:id", mw.Auth, buyer)
	pay.PATCH("/initiate/", h.Payments.Initiate)
	pay.PATCH("/confirm/", h.Payments.Confirm)
	pay.PATCH("/cancel/", h.Payments.Cancel)
	pay.PATCH("/success/", h.Payments.Success)
	pay.PATCH("/create/link/", h.Payments.CreateLink)
	pay.GET("/status/", h.Payments.Status)

	coupons := api.Group("/coupons", mw.Auth)
	coupons.POST("/apply/", buyer, h.Coupons.Apply)
	coupons.GET("/", seller, h.Coupons.List)
	coupons.POST("/", seller, h.Coupons.Create)
	coupons.GET("/:id/", seller, h.Coupons.Get)
	coupons.PATCH("/:id/", seller, h.Coupons.Update)
	coupons.DELETE("/:id/", seller, h.Coupons.Delete)

	// =============================================
	// WISHLIST ET NOTIFICATIONS
	// =============================================
	wishlist := api.Group("/wishlist", mw.Auth, buyer)
	wishlist.GET("/", h.Wishlist.List)
	wishlist.POST("/", h.Wishlist.Add)
	wishlist.GET("/:id/", h.Wishlist.Get)
	wishlist.DELETE("/:id/", h.Wishlist.Delete)

	notifications := api.Group("/notifications", mw.Auth)
	notifications.GET("/", h.Notifications.List)
	notifications.GET("/ws/", h.Notifications.Stream)
	notifications.GET("/:id/", h.Notifications.Get)
	notifications.PATCH("/:id/", h.Notifications.Update)
}
