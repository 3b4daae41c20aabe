// Package valkey implements the protocol client the application core is
// built on: connection URLs, the RESP3 value model, and a TCP client
// with the handshake the server side expects.
package valkey

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultPort is used when the URL does not carry one.
	DefaultPort = 6379
	// DefaultHost is used by the zero URL.
	DefaultHost = "127.0.0.1"
)

// URL is a parsed connection URL of the form
//
//	valkey://[username[:password]@]host[:port][/db]
//
// optionally followed by saved-connection metadata, pipe-separated
// key:value fields ("|type:standalone|last:1714060800").
type URL struct {
	Alias    string
	Host     string
	Port     int
	Username string
	Password string
	// DB is the database index to SELECT; negative means none.
	DB int
	// ConnType and LastSeen come from the metadata suffix of saved
	// connections; LastSeen timestamps are rendered human-readable.
	ConnType string
	LastSeen string
}

// ParseURL parses a connection URL. alias may be empty; it names the
// saved connection the URL came from.
func ParseURL(alias, raw string) (*URL, error) {
	u := &URL{Alias: alias, Host: DefaultHost, Port: DefaultPort, DB: -1}

	if pipe := strings.Index(raw, "|"); pipe >= 0 {
		for _, meta := range strings.Split(raw[pipe+1:], "|") {
			key, value, ok := strings.Cut(meta, ":")
			if !ok {
				continue
			}
			switch key {
			case "type":
				u.ConnType = value
			case "last":
				if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
					u.LastSeen = time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
				} else {
					u.LastSeen = value
				}
			}
		}
		raw = raw[:pipe]
	}

	const prefix = "valkey://"
	rest, ok := strings.CutPrefix(raw, prefix)
	if !ok {
		return nil, errors.Errorf("URL must start with %q", prefix)
	}

	if slash := strings.Index(rest, "/"); slash >= 0 {
		dbStr := strings.TrimSpace(rest[slash+1:])
		rest = rest[:slash]
		if dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil && db >= 0 {
				u.DB = db
			}
		}
	}

	if at := strings.Index(rest, "@"); at >= 0 {
		userinfo := rest[:at]
		rest = rest[at+1:]
		if user, pass, ok := strings.Cut(userinfo, ":"); ok {
			u.Username = user
			u.Password = pass
		} else {
			u.Username = userinfo
		}
	}

	u.Host = rest
	if colon := strings.LastIndex(rest, ":"); colon >= 0 {
		if port, err := strconv.Atoi(rest[colon+1:]); err == nil && port > 0 && port <= 65535 {
			u.Port = port
			u.Host = rest[:colon]
		}
	}
	return u, nil
}

// URLBuilder composes a URL field by field.
type URLBuilder struct {
	u URL
}

// NewURLBuilder starts from the defaults: 127.0.0.1:6379, no
// credentials, no database selected.
func NewURLBuilder() *URLBuilder {
	return &URLBuilder{u: URL{Host: DefaultHost, Port: DefaultPort, DB: -1}}
}

func (b *URLBuilder) Alias(alias string) *URLBuilder {
	b.u.Alias = alias
	return b
}

func (b *URLBuilder) Host(host string) *URLBuilder {
	b.u.Host = host
	return b
}

func (b *URLBuilder) Port(port int) *URLBuilder {
	b.u.Port = port
	return b
}

func (b *URLBuilder) Username(username string) *URLBuilder {
	b.u.Username = username
	return b
}

func (b *URLBuilder) Password(password string) *URLBuilder {
	b.u.Password = password
	return b
}

func (b *URLBuilder) DB(db int) *URLBuilder {
	b.u.DB = db
	return b
}

// Build returns a copy of the composed URL.
func (b *URLBuilder) Build() *URL {
	u := b.u
	return &u
}

// ConnectionString renders the URL without alias or metadata, in the
// same form ParseURL accepts.
func (u *URL) ConnectionString() string {
	var sb strings.Builder
	sb.WriteString("valkey://")
	if u.Username != "" || u.Password != "" {
		sb.WriteString(u.Username)
		if u.Password != "" {
			sb.WriteString(":")
			sb.WriteString(u.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(u.Host)
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(u.Port))
	if u.DB >= 0 {
		sb.WriteString("/")
		sb.WriteString(strconv.Itoa(u.DB))
	}
	return sb.String()
}

// Address is the host:port dial target.
func (u *URL) Address() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// String prefers the alias when the URL belongs to a saved connection.
func (u *URL) String() string {
	if u.Alias != "" {
		return u.Alias
	}
	return u.ConnectionString()
}
