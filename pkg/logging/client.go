// Package logging provides a small reusable client that ships structured log
// entries to a remote HTTP endpoint. The client is constructed explicitly and
// passed to collaborators that need it; there is no package-level singleton.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Stack identifies which side of the system an entry originates from.
type Stack string

const (
	StackBackend  Stack = "backend"
	StackFrontend Stack = "frontend"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

var (
	// ErrInvalidStack is returned when the stack is not backend or frontend.
	ErrInvalidStack = errors.New("invalid stack")
	// ErrInvalidLevel is returned when the level is not one of the known severities.
	ErrInvalidLevel = errors.New("invalid level")
	// ErrInvalidPackage is returned when the package is not allowed for the stack.
	ErrInvalidPackage = errors.New("invalid package for stack")
)

var levels = map[Level]struct{}{
	LevelDebug: {},
	LevelInfo:  {},
	LevelWarn:  {},
	LevelError: {},
	LevelFatal: {},
}

// Allow-lists of package names per stack. sharedPackages are valid for both.
var (
	backendPackages = map[string]struct{}{
		"cache": {}, "controller": {}, "cron_job": {}, "db": {},
		"domain": {}, "handler": {}, "repository": {}, "route": {}, "service": {},
	}
	frontendPackages = map[string]struct{}{
		"api": {}, "component": {}, "hook": {}, "page": {}, "state": {}, "style": {},
	}
	sharedPackages = map[string]struct{}{
		"auth": {}, "config": {}, "middleware": {}, "utils": {},
	}
)

// Entry is a single shipped log record.
type Entry struct {
	Stack     Stack     `json:"stack"`
	Level     Level     `json:"level"`
	Package   string    `json:"package"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const defaultBufferSize = 100

// Client ships log entries to a remote endpoint and keeps a bounded ring
// buffer of the most recent entries.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
	suppress bool

	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithToken sets a bearer token sent with each entry.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithSuppressErrors makes Log swallow delivery failures instead of
// returning them. Validation failures are still returned.
func WithSuppressErrors(suppress bool) Option {
	return func(c *Client) {
		c.suppress = suppress
	}
}

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buf = make([]Entry, n)
		}
	}
}

// New creates a Client shipping entries to the given endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 5 * time.Second},
		buf:      make([]Entry, defaultBufferSize),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Log validates the entry, records it in the ring buffer and posts it to the
// configured endpoint. Delivery failures are returned unless the client was
// created with WithSuppressErrors.
func (c *Client) Log(ctx context.Context, stack Stack, level Level, pkg, msg string) error {
	const op = "logging.Client.Log"

	if err := validate(stack, level, pkg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	entry := Entry{
		Stack:     stack,
		Level:     level,
		Package:   pkg,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
	c.record(entry)

	if err := c.post(ctx, entry); err != nil {
		if c.suppress {
			return nil
		}
		return fmt.Errorf("%s: failed to ship log entry: %w", op, err)
	}

	return nil
}

// Recent returns the buffered entries, oldest first.
func (c *Client) Recent() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		out := make([]Entry, c.next)
		copy(out, c.buf[:c.next])
		return out
	}

	out := make([]Entry, 0, len(c.buf))
	out = append(out, c.buf[c.next:]...)
	out = append(out, c.buf[:c.next]...)
	return out
}

func (c *Client) record(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf[c.next] = entry
	c.next++
	if c.next == len(c.buf) {
		c.next = 0
		c.full = true
	}
}

func (c *Client) post(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func validate(stack Stack, level Level, pkg string) error {
	if stack != StackBackend && stack != StackFrontend {
		return fmt.Errorf("%w: %q", ErrInvalidStack, stack)
	}

	if _, ok := levels[level]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	if _, ok := sharedPackages[pkg]; ok {
		return nil
	}

	allowed := backendPackages
	if stack == StackFrontend {
		allowed = frontendPackages
	}
	if _, ok := allowed[pkg]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPackage, pkg)
	}

	return nil
}
