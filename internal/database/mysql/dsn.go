package mysql

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
)

const (
	defaultPort    = 3306
	defaultCharset = "utf8mb4"
)

// Params are discrete connection settings, used when no DSN is configured.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string
	Timeout  time.Duration
}

// BuildDSN constructs a go-sql-driver DSN with parseTime enabled.
func BuildDSN(p Params) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	charset := p.Charset
	if charset == "" {
		charset = defaultCharset
	}
	cfg := gomysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, port)
	cfg.DBName = p.Database
	cfg.ParseTime = true
	cfg.Timeout = p.Timeout
	cfg.Params = map[string]string{"charset": charset}
	return cfg.FormatDSN()
}
