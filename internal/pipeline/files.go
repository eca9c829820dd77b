package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/relayforge/relayforge/internal/domain"
)

// maxInlineFileBytes caps the size of a file downloaded for inline-only
// providers.
const maxInlineFileBytes = 32 << 20

// FileResolver downloads a URL-referenced file into inline data, in place.
type FileResolver func(ctx context.Context, f *domain.File) error

// HTTPFileResolver returns a resolver fetching over the given client. nil
// falls back to http.DefaultClient.
func HTTPFileResolver(httpClient *http.Client) FileResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return func(ctx context.Context, f *domain.File) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", f.URL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch %s: status %d", f.URL, resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineFileBytes+1))
		if err != nil {
			return fmt.Errorf("read %s: %w", f.URL, err)
		}
		if len(data) > maxInlineFileBytes {
			return fmt.Errorf("file %s exceeds inline size limit", f.URL)
		}

		if f.ContentType == "" {
			f.ContentType = resp.Header.Get("Content-Type")
		}
		f.Data = base64.StdEncoding.EncodeToString(data)
		f.URL = ""
		return nil
	}
}
