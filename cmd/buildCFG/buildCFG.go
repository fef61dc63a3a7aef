// Package buildCFG assembles typed runtime configuration from the loaded
// config file, with environment variables taking precedence for secrets.
package buildCFG

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port             string
	JWTSecret        string
	PaymentWindowMin int
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type MailConfig struct {
	Host string
	Port string
	From string
	Pass string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) (*ServerConfig, error) {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = cfg.GetString("server.jwt_secret")
	}
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is not configured")
	}

	window := cfg.GetInt("payments.window_minutes")
	if window <= 0 {
		window = 30
	}

	log.Info().Str("port", port).Int("payment_window_min", window).Msg("server config built")

	return &ServerConfig{
		Port:             port,
		JWTSecret:        secret,
		PaymentWindowMin: window,
	}, nil
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := os.Getenv("DATABASE_URL")
	if masterDSN == "" {
		masterDSN = cfg.GetString("database.master_dsn")
	}
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("database DSN is not configured")
	}

	var slaveDSNs []string
	if slave := cfg.GetString("database.slave_dsn"); slave != "" {
		slaveDSNs = append(slaveDSNs, slave)
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: time.Duration(cfg.GetInt("database.conn_max_lifetime_sec")) * time.Second,
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("database config built")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = cfg.GetString("rabbit.url")
	}
	if url == "" {
		return nil, fmt.Errorf("RabbitMQ URL is not configured")
	}

	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" || rc.Queue == "" {
		return nil, fmt.Errorf("RabbitMQ exchange/queue are not configured")
	}

	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit config built")
	return rc, nil
}

func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) *MailConfig {
	mc := &MailConfig{
		Host: cfg.GetString("mail.smtp_host"),
		Port: cfg.GetString("mail.smtp_port"),
		From: cfg.GetString("mail.from"),
		Pass: os.Getenv("SMTP_PASSWORD"),
	}
	if mc.Host == "" {
		log.Info().Msg("mail is not configured, notifications disabled")
	}
	return mc
}
