// Package probe implements the File Info Probe (C1): a handful of HEAD or
// Range:bytes=0-0 requests used to discover the remote file's length,
// range support, redirected URL, and optional Content-MD5 before any
// slice is planned.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zoedl/zoedl/internal/httpclient"
	"github.com/zoedl/zoedl/internal/model"
)

// DefinitiveError wraps a non-retryable HTTP status (any 4xx other than
// 408/429) so the controller can distinguish it from a transient failure.
type DefinitiveError struct {
	StatusCode int
	Status     string
}

func (e *DefinitiveError) Error() string {
	return fmt.Sprintf("probe: definitive failure: %s", e.Status)
}

func isDefinitive(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

// Fetch discovers a Descriptor for originURL, retrying up to
// cfg.FetchInfoRetries+1 times.
func Fetch(ctx context.Context, client *http.Client, originURL string, cfg model.Config) (model.Descriptor, error) {
	if strings.HasPrefix(originURL, "file://") {
		return fetchLocal(originURL)
	}

	attempts := cfg.FetchInfoRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		desc, err := attemptOnce(ctx, client, originURL, cfg)
		if err == nil {
			return desc, nil
		}
		lastErr = err
		var de *DefinitiveError
		if errors.As(err, &de) {
			return model.Descriptor{}, err
		}
		if ctx.Err() != nil {
			return model.Descriptor{}, ctx.Err()
		}
		if attempt < attempts-1 {
			d := time.Duration(attempt+1) * 300 * time.Millisecond
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return model.Descriptor{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return model.Descriptor{}, fmt.Errorf("probe: all attempts failed: %w", lastErr)
}

func attemptOnce(ctx context.Context, client *http.Client, originURL string, cfg model.Config) (model.Descriptor, error) {
	method := http.MethodGet
	if cfg.FetchInfoUseHead {
		method = http.MethodHead
	}

	req, err := http.NewRequestWithContext(ctx, method, originURL, nil)
	if err != nil {
		return model.Descriptor{}, err
	}
	if !cfg.FetchInfoUseHead {
		req.Header.Set("Range", "bytes=0-0")
	}
	httpclient.ApplyHeaders(req, cfg)

	resp, err := client.Do(req)
	if err != nil {
		return model.Descriptor{}, err
	}
	defer resp.Body.Close()

	if isDefinitive(resp.StatusCode) {
		return model.Descriptor{}, &DefinitiveError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if resp.StatusCode >= 400 {
		return model.Descriptor{}, fmt.Errorf("probe: transient status %s", resp.Status)
	}

	effective := originURL
	if resp.Request != nil && resp.Request.URL != nil {
		effective = resp.Request.URL.String()
	}

	desc := model.Descriptor{
		EffectiveURL:  effective,
		ContentLength: -1,
		AcceptsRanges: strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
	}

	if cl := contentLength(resp); cl >= 0 {
		desc.ContentLength = cl
	}
	if cfg.ContentMD5Enabled {
		desc.ContentMD5 = strings.TrimSpace(resp.Header.Get("Content-MD5"))
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			desc.LastModified = t
		}
	}

	return desc, nil
}

func contentLength(resp *http.Response) int64 {
	if resp.StatusCode == http.StatusPartialContent {
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx >= 0 && cr[idx+1:] != "*" {
				if n, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
					return n
				}
			}
		}
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return -1
}

func fetchLocal(originURL string) (model.Descriptor, error) {
	u, err := url.Parse(originURL)
	if err != nil {
		return model.Descriptor{}, err
	}
	fi, err := os.Stat(u.Path)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("probe: stat local file: %w", err)
	}
	return model.Descriptor{
		EffectiveURL:  originURL,
		ContentLength: fi.Size(),
		AcceptsRanges: true,
		LastModified:  fi.ModTime(),
	}, nil
}
