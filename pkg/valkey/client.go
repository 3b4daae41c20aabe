package valkey

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server support policy: Valkey from version 8 is fully supported,
// Redis servers speak enough RESP3 to work but are not the target.
var (
	minServerVersion = [3]int{8, 0, 0}
	supportedServers = []string{"valkey"}
	partiallySupport = []string{"redis"}

	ErrUnsupported     = errors.New("unsupported server")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrSelectFailed    = errors.New("cannot select database")
	ErrHandshakeFailed = errors.New("server handshake failed")
)

// Options tune the connection. Zero values fall back to the defaults
// the desktop client uses.
type Options struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Log          *zap.SugaredLogger
}

func (o *Options) defaults() {
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
}

// Client is a connection to one server. Methods serialize on an
// internal lock; one in-flight roundtrip at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	buf  []byte

	url        *URL
	serverType string
	mode       string
	version    string

	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *zap.SugaredLogger
}

// Dial connects and runs the handshake: AUTH when the URL carries
// credentials, SELECT when it names a database, PING, then HELLO 3 to
// negotiate RESP3 and vet the server type and version.
func Dial(ctx context.Context, u *URL, opts Options) (*Client, error) {
	opts.defaults()
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", u.Address())
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", u.Address())
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	c := &Client{
		conn:         conn,
		url:          u,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		log:          opts.Log,
	}
	if err := c.handshake(ctx, u); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context, u *URL) error {
	if u.Username != "" || u.Password != "" {
		args := []string{"AUTH", u.Password}
		if u.Username != "" {
			args = []string{"AUTH", u.Username, u.Password}
		}
		res, err := c.Do(ctx, args...)
		if err != nil {
			return err
		}
		if res.String() != "OK" {
			return ErrAuthFailed
		}
	}
	if u.DB >= 0 {
		res, err := c.Do(ctx, "SELECT", strconv.Itoa(u.DB))
		if err != nil {
			return err
		}
		if res.String() != "OK" {
			return errors.Wrapf(ErrSelectFailed, "database %d", u.DB)
		}
	}
	res, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	if res.String() != "PONG" {
		return errors.Wrap(ErrHandshakeFailed, "no PONG")
	}

	hello, err := c.Do(ctx, "HELLO", "3")
	if err != nil {
		return err
	}
	if hello.Kind != KindMap {
		return errors.Wrap(ErrUnsupported, "server did not answer HELLO 3")
	}
	server, ok := hello.MapGet("server")
	if !ok {
		return errors.Wrap(ErrHandshakeFailed, "HELLO reply has no server field")
	}
	version, ok := hello.MapGet("version")
	if !ok {
		return errors.Wrap(ErrHandshakeFailed, "HELLO reply has no version field")
	}
	if mode, ok := hello.MapGet("mode"); ok {
		c.mode = mode.String()
	}
	c.serverType = server.String()
	c.version = version.String()

	// The version floor applies before the server-type distinction, so
	// an old Redis is refused just like an old Valkey.
	major, minor, patch := splitVersion(c.version)
	if versionLess([3]int{major, minor, patch}, minServerVersion) {
		return errors.Wrapf(ErrUnsupported, "%s %s is older than the minimum %d.%d",
			c.serverType, c.version, minServerVersion[0], minServerVersion[1])
	}
	switch {
	case contains(supportedServers, c.serverType):
	case contains(partiallySupport, c.serverType):
		c.log.Warnw("server is only partially supported", "server", c.serverType, "version", c.version)
	default:
		return errors.Wrapf(ErrUnsupported, "server %q", c.serverType)
	}
	return nil
}

func splitVersion(v string) (major, minor, patch int) {
	parts := strings.SplitN(v, ".", 3)
	read := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		n, _ := strconv.Atoi(parts[i])
		return n
	}
	return read(0), read(1), read(2)
}

func versionLess(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// URL returns the parsed URL this client dialed.
func (c *Client) URL() *URL { return c.url }

// ServerType is the server field from HELLO, e.g. "valkey".
func (c *Client) ServerType() string { return c.serverType }

// ServerVersion is the version field from HELLO.
func (c *Client) ServerVersion() string { return c.version }

// Mode is the mode field from HELLO, e.g. "standalone".
func (c *Client) Mode() string { return c.mode }

// Do sends one command and reads one reply.
func (c *Client) Do(ctx context.Context, args ...string) (Value, error) {
	if len(args) == 0 {
		return Value{}, errors.New("empty command")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(ctx, EncodeCommand(args...)); err != nil {
		return Value{}, err
	}
	values, err := c.receive(ctx, 1)
	if err != nil {
		return Value{}, err
	}
	return values[0], nil
}

// Pipeline sends all commands in one write and reads one reply per
// command, in order.
func (c *Client) Pipeline(ctx context.Context, commands [][]string) ([]Value, error) {
	if len(commands) == 0 {
		return nil, nil
	}
	var wire []byte
	for _, args := range commands {
		wire = append(wire, EncodeCommand(args...)...)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(ctx, wire); err != nil {
		return nil, err
	}
	return c.receive(ctx, len(commands))
}

// Exec runs one command line the way the workbench input does: the
// line is split shell-style, quotes and escapes respected.
func (c *Client) Exec(ctx context.Context, commandLine string) ([]string, error) {
	args := SplitCommandLine(strings.TrimSpace(commandLine))
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	res, err := c.Do(ctx, args...)
	if err != nil {
		return nil, err
	}
	return res.Flatten(), nil
}

// ExecPipeline runs several command lines pipelined and returns one
// rendered reply per line.
func (c *Client) ExecPipeline(ctx context.Context, commandLines []string) ([]string, error) {
	commands := make([][]string, 0, len(commandLines))
	for _, line := range commandLines {
		args := SplitCommandLine(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		commands = append(commands, args)
	}
	values, err := c.Pipeline(ctx, commands)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out, nil
}

// Get fetches a string key; a missing key comes back as the empty
// string with ok false.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := c.Do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	if err := res.Err(); err != nil {
		return "", false, err
	}
	if res.Kind == KindNull {
		return "", false, nil
	}
	return res.String(), true, nil
}

// Set writes a string key; ttl > 0 adds EX seconds.
func (c *Client) Set(ctx context.Context, key, value string, ttl int) error {
	args := []string{"SET", key, value}
	if ttl > 0 {
		args = append(args, "EX", strconv.Itoa(ttl))
	}
	res, err := c.Do(ctx, args...)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, wire []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.writeTimeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(wire); err != nil {
		return errors.Wrap(err, "write to server")
	}
	return nil
}

// receive reads until want complete values are buffered, then decodes
// them. Leftover bytes (server pushes) stay in the buffer.
func (c *Client) receive(ctx context.Context, want int) ([]Value, error) {
	chunk := make([]byte, 8192)
	for {
		if CompleteCount(c.buf) >= want {
			break
		}
		if err := c.conn.SetReadDeadline(deadline(ctx, c.readTimeout)); err != nil {
			return nil, err
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			if len(c.buf) > 0 {
				return nil, errors.Wrap(err, "connection lost mid-reply")
			}
			return nil, errors.Wrap(err, "connection closed by server without response")
		}
	}
	values := make([]Value, 0, want)
	pos := 0
	for i := 0; i < want; i++ {
		v, next, err := parseAt(c.buf, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		pos = next
	}
	c.buf = c.buf[pos:]
	return values, nil
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// SplitCommandLine splits a command line into arguments. Double and
// single quotes group words, backslash escapes work inside quotes.
func SplitCommandLine(input string) []string {
	var result []string
	var token strings.Builder
	inQuotes := false
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\\' && inQuotes:
			if i+1 < len(runes) {
				i++
				switch runes[i] {
				case '"', '\'', '\\':
					token.WriteRune(runes[i])
				case 'n':
					token.WriteRune('\n')
				case 't':
					token.WriteRune('\t')
				default:
					token.WriteRune('\\')
					token.WriteRune(runes[i])
				}
			}
		case ch == '"' || ch == '\'':
			if inQuotes {
				result = append(result, token.String())
				token.Reset()
				inQuotes = false
			} else {
				inQuotes = true
			}
		case ch == ' ' && !inQuotes:
			if token.Len() > 0 {
				result = append(result, token.String())
				token.Reset()
			}
		default:
			token.WriteRune(ch)
		}
	}
	if token.Len() > 0 {
		result = append(result, token.String())
	}
	return result
}
