package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"sessionhub/internal/mailer"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	JWTSecret string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	host := cfg.GetString("database.host")
	port := cfg.GetString("database.port")
	user := cfg.GetString("database.user")
	password := cfg.GetString("database.password")
	name := cfg.GetString("database.name")
	sslmode := cfg.GetString("database.sslmode")

	if host == "" || port == "" || user == "" || name == "" {
		return "", nil, nil, fmt.Errorf("incomplete database config: host=%q port=%q user=%q name=%q", host, port, user, name)
	}
	if sslmode == "" {
		sslmode = "disable"
	}

	masterDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslmode)

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: time.Duration(cfg.GetInt("database.conn_max_lifetime_sec")) * time.Second,
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}

	log.Info().Str("host", host).Str("db", name).Msg("database config built")
	return masterDSN, nil, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.url is required")
	}
	if rc.Exchange == "" {
		rc.Exchange = "sessionhub.notifications"
	}
	if rc.Queue == "" {
		rc.Queue = "sessionhub.notifications.queue"
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit config built")
	return rc, nil
}

func BuildAuthConfig(cfg *config.Config) (AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("auth.jwt_secret is required")
	}
	return AuthConfig{JWTSecret: secret}, nil
}

func BuildSMTPConfig(cfg *config.Config) mailer.Config {
	return mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetString("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
	}
}
