// Package contentful is a read-only client for the Contentful Content
// Delivery API, limited to what the storefront catalog needs.
package contentful

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/domain/product"
)

// ProductContentType is the content type id of catalog products.
const ProductContentType = "product"

// Configuration errors returned by NewClient.
var (
	ErrMissingSpaceID     = errors.New("contentful space id is not set")
	ErrMissingAccessToken = errors.New("contentful access token is not set")
)

// APIError is a non-2xx response from the delivery API.
type APIError struct {
	StatusCode int
	ID         string
	Message    string
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("contentful: %d %s: %s", e.StatusCode, e.ID, e.Message)
	}
	return fmt.Sprintf("contentful: %d: %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	SpaceID     string
	AccessToken string
	// Environment defaults to "master".
	Environment string
	// BaseURL defaults to the public CDN endpoint.
	BaseURL string
	// PageSize is the number of entries per request, at most 1000.
	PageSize int
	// Concurrency bounds parallel page requests after the first page.
	Concurrency int
	Timeout     time.Duration

	// Transport is the base round tripper, http.DefaultTransport when nil.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

var _ product.Source = (*Client)(nil)

// Client fetches product entries.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	tracer trace.Tracer
}

// NewClient validates cfg and returns a Client. Missing credentials are
// reported as ErrMissingSpaceID or ErrMissingAccessToken.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SpaceID == "" {
		return nil, ErrMissingSpaceID
	}
	if cfg.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	if cfg.Environment == "" {
		cfg.Environment = "master"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://cdn.contentful.com"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 1000 {
		cfg.PageSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport,
				otelhttp.WithTracerProvider(cfg.TracerProvider),
				otelhttp.WithMeterProvider(cfg.MeterProvider),
			),
		},
		tracer: cfg.TracerProvider.Tracer("github.com/xenking/kirana/internal/contentful"),
	}, nil
}

// ListAvailable implements product.Source.
func (c *Client) ListAvailable(ctx context.Context) ([]product.Product, error) {
	entries, err := c.Entries(ctx, ProductContentType)
	if err != nil {
		return nil, err
	}
	return catalog.ProjectAvailable(entries), nil
}

// Entries returns every entry of contentType with linked image assets
// resolved. The first page reveals the total; the remaining pages are
// fetched concurrently and returned in CMS order.
func (c *Client) Entries(ctx context.Context, contentType string) ([]catalog.Entry, error) {
	first, err := c.page(ctx, contentType, 0)
	if err != nil {
		return nil, err
	}
	if first.total <= len(first.entries) {
		return first.entries, nil
	}

	var offsets []int
	for skip := c.cfg.PageSize; skip < first.total; skip += c.cfg.PageSize {
		offsets = append(offsets, skip)
	}
	pages := make([][]catalog.Entry, len(offsets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, skip := range offsets {
		g.Go(func() error {
			p, err := c.page(gctx, contentType, skip)
			if err != nil {
				return err
			}
			pages[i] = p.entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]catalog.Entry, 0, first.total)
	out = append(out, first.entries...)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

type page struct {
	total   int
	entries []catalog.Entry
}

func (c *Client) page(ctx context.Context, contentType string, skip int) (_ *page, rerr error) {
	ctx, span := c.tracer.Start(ctx, "contentful.entries",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("contentful.content_type", contentType),
			attribute.Int("contentful.skip", skip),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	u := c.base.JoinPath("spaces", c.cfg.SpaceID, "environments", c.cfg.Environment, "entries")
	q := url.Values{}
	q.Set("content_type", contentType)
	q.Set("include", "1")
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("skip", strconv.Itoa(skip))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch entries")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read entries")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	p, err := decodePage(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode entries page skip=%d", skip)
	}
	span.SetAttributes(attribute.Int("contentful.items", len(p.entries)))
	return p, nil
}

func decodePage(body []byte) (*page, error) {
	var (
		p      page
		links  []string
		assets = make(map[string]catalog.Asset)
	)
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "total":
			v, err := d.Int()
			p.total = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				e, link, err := catalog.DecodeEntry(d)
				if err != nil {
					return err
				}
				p.entries = append(p.entries, e)
				links = append(links, link)
				return nil
			})
		case "includes":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "Asset" {
					return d.Skip()
				}
				return d.Arr(func(d *jx.Decoder) error {
					id, a, err := catalog.DecodeAsset(d)
					if err != nil {
						return err
					}
					assets[id] = a
					return nil
				})
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}

	for i, link := range links {
		if link == "" {
			continue
		}
		if a, ok := assets[link]; ok {
			p.entries[i].Fields.Image = &a
		}
	}
	return &p, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	d := jx.DecodeBytes(body)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			if d.Next() == jx.String {
				v, err := d.Str()
				apiErr.Message = v
				return err
			}
		case "sys":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key == "id" && d.Next() == jx.String {
					v, err := d.Str()
					apiErr.ID = v
					return err
				}
				return d.Skip()
			})
		}
		return d.Skip()
	})
	return apiErr
}
