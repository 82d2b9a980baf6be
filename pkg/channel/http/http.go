package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/user/courier"
	"github.com/user/courier/pkg/compression"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxResponseBody = 1 << 20

// DefaultLocatorPaths are tried in order against a JSON success body.
var DefaultLocatorPaths = []string{
	"submission.fileURL",
	"fileURL",
	"locator",
	"url",
	"submission.id",
	"id",
}

// Options configures a multipart sender.
type Options struct {
	URL          string
	Headers      map[string]string
	LocatorPaths []string
	Compression  compression.Algorithm
	Client       *http.Client
}

// Sender posts a payload as multipart/form-data and maps the response onto an outcome.
// It is shared by every channel that talks to an upload endpoint.
type Sender struct {
	url          string
	client       *http.Client
	headers      map[string]string
	locatorPaths []string
	compression  compression.Algorithm
	logger       courier.Logger
}

func NewSender(opts Options) *Sender {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	paths := opts.LocatorPaths
	if len(paths) == 0 {
		paths = DefaultLocatorPaths
	}
	return &Sender{
		url:          opts.URL,
		client:       client,
		headers:      opts.Headers,
		locatorPaths: paths,
		compression:  opts.Compression,
	}
}

func (s *Sender) SetLogger(logger courier.Logger) {
	s.logger = logger
}

// URL returns the endpoint the sender posts to.
func (s *Sender) URL() string {
	return s.url
}

// Send performs one POST. The request is bound to ctx; timeout only sets the
// deadline when ctx has none.
func (s *Sender) Send(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	if s.url == "" {
		return courier.Failed(courier.FailureUnsupported, "no endpoint configured")
	}
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, contentType, err := s.encode(p)
	if err != nil {
		return courier.Failed(courier.FailureUnsupported, "failed to encode payload: %v", err)
	}

	report := courier.ProgressFromContext(ctx)
	newBody := func() io.ReadCloser {
		return io.NopCloser(&progressReader{
			r:      bytes.NewReader(body),
			total:  int64(len(body)),
			report: report,
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, newBody())
	if err != nil {
		return courier.Failed(courier.FailureUnsupported, "failed to create request: %v", err)
	}
	req.ContentLength = int64(len(body))
	// 307 and 308 redirects replay the body.
	req.GetBody = func() (io.ReadCloser, error) {
		return newBody(), nil
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Submission-ID", p.ID())
	if s.compression != compression.None {
		req.Header.Set("Content-Encoding", string(s.compression))
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		// The transport wraps context errors; prefer the context's own verdict.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return courier.FailureFromError(ctxErr)
		}
		return courier.FailureFromError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil && s.logger != nil {
		s.logger.Warn("Failed to read response body", "url", s.url, "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return courier.Rejected(resp.StatusCode, rejectionMessage(resp, respBody))
	}

	return courier.Succeeded(s.locator(resp, respBody))
}

func (s *Sender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Sender) encode(p *courier.Payload) ([]byte, string, error) {
	var buf bytes.Buffer
	enc, err := compression.NewWriter(s.compression, &buf)
	if err != nil {
		return nil, "", err
	}

	mw := multipart.NewWriter(enc)
	f := p.Fields()
	for _, field := range [][2]string{
		{"username", f.Username},
		{"email", f.Email},
		{"phoneCode", f.PhoneCountryCode},
		{"phone", f.PhoneNumber},
	} {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	file := p.File()
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name())))
	h.Set("Content-Type", file.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}

	rc, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()
	if _, err := io.Copy(part, rc); err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	if err := enc.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (s *Sender) locator(resp *http.Response, body []byte) string {
	if len(body) > 0 && gjson.ValidBytes(body) {
		for _, path := range s.locatorPaths {
			if res := gjson.GetBytes(body, path); res.Exists() && res.String() != "" {
				return res.String()
			}
		}
	}
	return resp.Header.Get("Location")
}

func rejectionMessage(resp *http.Response, body []byte) string {
	if len(body) > 0 && gjson.ValidBytes(body) {
		for _, path := range []string{"error", "message"} {
			if res := gjson.GetBytes(body, path); res.Exists() && res.String() != "" {
				return res.String()
			}
		}
	}
	return resp.Status
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report courier.ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.read += int64(n)
	if r.total > 0 {
		pct := int(r.read * 100 / r.total)
		if pct != r.last {
			r.last = pct
			r.report(pct)
		}
	}
	return n, err
}

// DirectChannel posts straight to the collection endpoint.
type DirectChannel struct {
	*Sender
}

func NewDirectChannel(opts Options) *DirectChannel {
	return &DirectChannel{Sender: NewSender(opts)}
}

func (c *DirectChannel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	return c.Send(ctx, p, timeout)
}

func (c *DirectChannel) Delivery() courier.Delivery {
	return courier.DeliveryRemote
}
