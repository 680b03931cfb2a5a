package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	catalogclient "github.com/Apurer/bookshop-order-service/internal/clients/http/catalog"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

const (
	defaultTimeout    = 3 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 100 * time.Millisecond
)

// BookFetcher is the slice of the catalog HTTP client the lookup needs.
type BookFetcher interface {
	GetBook(ctx context.Context, isbn string) (*catalogclient.Book, error)
}

// Lookup resolves ISBNs against the catalog. Every failure collapses to "absent".
type Lookup struct {
	client     BookFetcher
	timeout    time.Duration
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
	attempts   metric.Int64Counter
}

// Option customises the lookup.
type Option func(*Lookup)

// WithTimeout bounds each catalog attempt.
func WithTimeout(d time.Duration) Option {
	return func(l *Lookup) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(l *Lookup) {
		if n >= 0 {
			l.maxRetries = uint64(n)
		}
	}
}

// WithBackoff sets the first retry delay; later delays double.
func WithBackoff(d time.Duration) Option {
	return func(l *Lookup) {
		if d > 0 {
			l.backoff = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMeter(m metric.Meter) Option {
	return func(l *Lookup) {
		if m == nil {
			return
		}
		l.attempts, _ = m.Int64Counter("catalog.lookup.attempts", metric.WithDescription("Number of catalog lookup attempts"))
	}
}

// NewLookup wires a catalog client into the BookCatalog port.
func NewLookup(client BookFetcher, opts ...Option) *Lookup {
	l := &Lookup{
		client:     client,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Lookup returns the book for isbn, or false when it is unknown or the catalog is unreachable.
func (l *Lookup) Lookup(ctx context.Context, isbn string) (*domain.Book, bool) {
	isbn = strings.TrimSpace(isbn)
	if l == nil || l.client == nil || isbn == "" {
		return nil, false
	}

	var found *catalogclient.Book
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		book, err := l.client.GetBook(attemptCtx, isbn)
		l.recordAttempt(ctx, outcome(err))
		switch {
		case err == nil:
			found = book
			return nil
		case errors.Is(err, catalogclient.ErrBookNotFound):
			return backoff.Permanent(err)
		case transient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.backoff
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	retrying := backoff.WithContext(backoff.WithMaxRetries(policy, l.maxRetries), ctx)

	err := backoff.RetryNotify(operation, retrying, func(err error, wait time.Duration) {
		l.logger.LogAttrs(ctx, slog.LevelDebug, "retrying catalog lookup",
			slog.String("book.isbn", isbn), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, catalogclient.ErrBookNotFound) {
			level = slog.LevelInfo
		}
		l.logger.LogAttrs(ctx, level, "book treated as absent",
			slog.String("book.isbn", isbn), slog.Int("attempts", attempt), slog.String("error", err.Error()))
		return nil, false
	}
	return toDomain(found, isbn), true
}

func transient(err error) bool {
	var statusErr *catalogclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, catalogclient.ErrMalformedPayload) {
		return false
	}
	// Timeouts and connection failures surface as transport errors.
	return true
}

func outcome(err error) string {
	var statusErr *catalogclient.StatusError
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, catalogclient.ErrBookNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status_error"
	case errors.Is(err, catalogclient.ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "transport_error"
	}
}

func (l *Lookup) recordAttempt(ctx context.Context, result string) {
	if l.attempts != nil {
		l.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result)))
	}
}

func toDomain(book *catalogclient.Book, requested string) *domain.Book {
	if book == nil {
		return nil
	}
	isbn := strings.TrimSpace(book.Isbn)
	if isbn == "" {
		isbn = requested
	}
	return &domain.Book{
		ISBN:   isbn,
		Title:  book.Title,
		Author: book.Author,
		Price:  book.Price,
	}
}

var _ ports.BookCatalog = (*Lookup)(nil)
