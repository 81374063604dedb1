package config

import (
	"time"

	"github.com/osanval/cafeto/database"
)

// Config is parsed from the environment by ardanlabs/conf with the
// GOCAFETO prefix.
type Config struct {
	Mode string `conf:"default:dev,help:dev or prod"`

	Web struct {
		Address         string        `conf:"default:127.0.0.1:8000"`
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}

	Cors struct {
		Origin string
	}

	DB database.Config

	Storage struct {
		Dir     string `conf:"default:uploads"`
		BaseURL string `conf:"default:/static"`
	}

	Oauth struct {
		LoginRedirectURL string        `conf:"default:/"`
		DiscoveryTimeout time.Duration `conf:"default:30s"`
		Google           Provider
	}

	Login struct {
		Burst    int           `conf:"default:5"`
		Expiry   int           `conf:"default:60,help:limiter expiry in minutes"`
		Interval time.Duration `conf:"default:2s,help:minimum interval between attempts"`
	}
}

type Provider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

// Production reports whether diagnostics should be suppressed.
func (c Config) Production() bool {
	return c.Mode == "prod"
}
