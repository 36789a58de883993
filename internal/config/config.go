package config

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config regroupe toute la configuration du serveur.
type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	Port        string `env:"PORT" default:"8080"`
	FrontendURL string `env:"FRONTEND_URL" default:"http://localhost:3000"`
	DatabaseURL string `env:"DATABASE_URL"`
	PageSize    int    `env:"PAGE_SIZE" default:"10"`

	CORS       CORS       `env:"CORS"`
	Graceful   Graceful   `env:"GRACEFUL"`
	Redis      Redis      `env:"REDIS"`
	JWT        JWT        `env:"JWT"`
	OTP        OTP        `env:"OTP"`
	Stripe     Stripe     `env:"STRIPE"`
	SMTP       SMTP       `env:"SMTP"`
	Scylla     Scylla     `env:"SCYLLA"`
	Elastic    Elastic    `env:"ELASTIC"`
	MinIO      MinIO      `env:"MINIO"`
	Invoice    Invoice    `env:"INVOICE"`
	RateLimits RateLimits `env:"RATE_LIMIT"`
}

type CORS struct {
	Origins []string `env:"ORIGINS" default:"http://localhost:3000"`
}

type Graceful struct {
	ReadinessDelay  time.Duration `env:"READINESS_DELAY" default:"3s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type Redis struct {
	Host     string `env:"HOST" default:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" default:"0"`
}

// JWT décrit la signature et la durée de vie des jetons.
type JWT struct {
	Secret     string        `env:"SECRET"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" default:"30m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" default:"168h"`
}

type OTP struct {
	Expiry   time.Duration `env:"EXPIRY" default:"120s"`
	ResetTTL time.Duration `env:"RESET_TTL" default:"2h"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" default:"usd"`
	SuccessURL    string `env:"SUCCESS_URL" default:"http://localhost:3000/payment/success"`
	CancelURL     string `env:"CANCEL_URL" default:"http://localhost:3000/payment/cancel"`
}

// SMTP est optionnel : sans Host les e-mails sont seulement journalisés.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" default:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" default:"no-reply@marketplace.local"`
}

type Scylla struct {
	Hosts    []string      `env:"HOSTS"`
	Keyspace string        `env:"KEYSPACE" default:"marketplace"`
	Username string        `env:"USERNAME"`
	Password string        `env:"PASSWORD"`
	Timeout  time.Duration `env:"TIMEOUT" default:"5s"`
}

type Elastic struct {
	URL          string `env:"URL"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	ProductIndex string `env:"PRODUCT_INDEX" default:"products"`
}

type MinIO struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" default:"product-images"`
	UseSSL    bool   `env:"USE_SSL" default:"false"`
	PublicURL string `env:"PUBLIC_URL"`
}

type Invoice struct {
	Enabled     bool          `env:"ENABLED" default:"true"`
	RenderLimit time.Duration `env:"RENDER_TIMEOUT" default:"20s"`
	// Nombre de navigateurs headless lancés en parallèle.
	Concurrency int64         `env:"CONCURRENCY" default:"2"`
	CompanyName string        `env:"COMPANY_NAME" default:"Marketplace"`
}

// RateLimits fixe les fenêtres de limitation par route sensible.
type RateLimits struct {
	LoginMax       int           `env:"LOGIN_MAX" default:"5"`
	LoginWindow    time.Duration `env:"LOGIN_WINDOW" default:"15m"`
	RegisterMax    int           `env:"REGISTER_MAX" default:"3"`
	RegisterWindow time.Duration `env:"REGISTER_WINDOW" default:"1h"`
	ForgotMax      int           `env:"FORGOT_MAX" default:"3"`
	ForgotWindow   time.Duration `env:"FORGOT_WINDOW" default:"1h"`
	APIMax         int           `env:"API_MAX" default:"100"`
	APIWindow      time.Duration `env:"API_WINDOW" default:"1m"`
}

// IsProduction indique si le serveur tourne en production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load lit le fichier .env (s'il existe), puis les variables d'environnement
// et l'éventuel config.yaml.
func Load() (*Config, error) {
	// .env est facultatif, les variables système suffisent.
	_ = godotenv.Load(".env")
	return load([]string{"config.yaml"})
}

func load(files []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		AllowUnknownEnvs:   true,
		AllowUnknownFields: true,
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case c.JWT.Secret == "":
		return errors.New("JWT_SECRET is required")
	case len(c.JWT.Secret) < 32 && c.IsProduction():
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	case c.PageSize <= 0:
		return errors.New("PAGE_SIZE must be positive")
	}
	return nil
}
