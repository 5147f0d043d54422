package postgres

import (
	"fmt"
	"net/url"
)

const defaultPort = 5432

// Params are discrete connection settings, used when no DSN is configured.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// BuildDSN constructs a postgres:// URL from discrete settings.
func BuildDSN(p Params) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
