package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxFileBytes  = 20 << 20
	DefaultMaxTotalBytes = 25 << 20

	fallbackContentType = "application/octet-stream"
	fallbackFilename    = "attachment"
)

var (
	errFileTooLarge  = errors.New("file exceeds the per-file size limit")
	errTotalTooLarge = errors.New("attachments exceed the total size limit")
)

var genericContentTypes = map[string]bool{
	"application/octet-stream":   true,
	"binary/octet-stream":        true,
	"application/download":       true,
	"application/force-download": true,
	"application/x-download":     true,
}

type Config struct {
	// ScratchRoot is where per-attempt directories are created. Empty means os.TempDir.
	ScratchRoot   string
	Timeout       time.Duration
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// Fetcher downloads recipient attachments into a fresh scratch directory per send attempt.
type Fetcher struct {
	client *http.Client
	cfg    Config
	ins    instrument.Instrumentation
	bytes  metric.Int64Counter
}

func New(cfg Config, client *http.Client, ins instrument.Instrumentation) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.MaxTotalBytes <= 0 {
		cfg.MaxTotalBytes = DefaultMaxTotalBytes
	}
	if client == nil {
		client = &http.Client{}
	}

	counter, err := ins.Meter("mailing.outbound.fetcher").Int64Counter("mailing.attachment.bytes",
		metric.WithDescription("Attachment bytes written to scratch"),
		metric.WithUnit("By"),
	)
	if err != nil {
		slog.Warn("failed to create attachment bytes counter", "error", err)
	}

	return &Fetcher{client: client, cfg: cfg, ins: ins, bytes: counter}
}

func (f *Fetcher) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return f.ins.Tracer("mailing.outbound.fetcher").Start(ctx, name)
}

// Resolve downloads urls in order. Each failure becomes an error string tagged
// with its URL. Once the total cap trips the remaining URLs are skipped.
func (f *Fetcher) Resolve(ctx context.Context, urls []string) entity.ResolveResult {
	if len(urls) == 0 {
		return entity.ResolveResult{}
	}

	ctx, span := f.startSpan(ctx, "Resolve")
	defer span.End()

	dir, err := os.MkdirTemp(f.cfg.ScratchRoot, "attempt-*")
	if err != nil {
		slog.ErrorContext(ctx, "failed to create scratch dir", "root", f.cfg.ScratchRoot, "error", err)
		errs := make([]string, 0, len(urls))
		for _, u := range urls {
			errs = append(errs, fmt.Sprintf("%s: scratch dir: %v", u, err))
		}
		return entity.ResolveResult{Errors: errs}
	}

	res := entity.ResolveResult{ScratchDir: dir}
	var total int64
	capped := false
	for _, u := range urls {
		if capped {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: skipped: %v", u, errTotalTooLarge))
			continue
		}

		meta, err := f.fetch(ctx, dir, u, &total)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch attachment", "url", u, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", u, err))
			capped = errors.Is(err, errTotalTooLarge)
			continue
		}
		res.Items = append(res.Items, meta)
	}

	span.SetAttributes(
		attribute.Int("attachment.count", len(res.Items)),
		attribute.Int("attachment.errors", len(res.Errors)),
		attribute.Int64("attachment.bytes", total),
	)
	if f.bytes != nil && total > 0 {
		f.bytes.Add(ctx, total)
	}

	return res
}

// Cleanup removes dir recursively. Failures are only logged.
func (f *Fetcher) Cleanup(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.WarnContext(ctx, "failed to remove scratch dir", "dir", dir, "error", err)
	}
}

func (f *Fetcher) fetch(ctx context.Context, dir, rawURL string, total *int64) (entity.AttachmentMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return entity.AttachmentMeta{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return entity.AttachmentMeta{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return entity.AttachmentMeta{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	if resp.ContentLength > f.cfg.MaxFileBytes {
		return entity.AttachmentMeta{}, fmt.Errorf("%w: declared %d bytes", errFileTooLarge, resp.ContentLength)
	}

	name := uuid.NewString()[:8] + "-" + filenameOf(resp, req.URL)
	p := filepath.Join(dir, name)

	size, err := f.save(resp.Body, p, *total)
	if err != nil {
		_ = os.Remove(p)
		return entity.AttachmentMeta{}, err
	}
	*total += size

	return entity.AttachmentMeta{
		URL:         rawURL,
		Path:        p,
		Filename:    name,
		ContentType: contentTypeOf(resp.Header.Get("Content-Type"), name),
		Size:        size,
	}, nil
}

// save streams r into p and stops as soon as either cap is crossed.
func (f *Fetcher) save(r io.Reader, p string, total int64) (int64, error) {
	file, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}

	var written int64
	buf := make([]byte, 32<<10)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > f.cfg.MaxFileBytes {
				_ = file.Close()
				return written, errFileTooLarge
			}
			if total+written > f.cfg.MaxTotalBytes {
				_ = file.Close()
				return written, errTotalTooLarge
			}
			if _, err := file.Write(buf[:n]); err != nil {
				_ = file.Close()
				return written, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			_ = file.Close()
			return written, rerr
		}
	}

	return written, file.Close()
}

func filenameOf(resp *http.Response, u *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := sanitize(params["filename"]); name != "" {
				return name
			}
		}
	}
	if name := sanitize(path.Base(u.Path)); name != "" {
		return name
	}
	return fallbackFilename
}

// sanitize keeps only the last path element so a header cannot escape the scratch dir.
func sanitize(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func contentTypeOf(header, filename string) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && !genericContentTypes[mt] {
		return mt
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return fallbackContentType
}
