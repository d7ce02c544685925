// Package index implements IndexClient (spec.md §4.1): fetching package
// metadata and artifact bytes from the remote package index. The wire
// shape follows the teacher's registry/client package — typed errors built
// from the HTTP status, a stable User-Agent — but speaks the third-party
// index's own standardized JSON metadata API rather than the OCI registry
// protocol.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// userAgent is sent on every request so the index can identify this tool,
// the way client/client.go's callers are expected to (spec.md §4.1).
const userAgent = "depctl/1.0"

const (
	defaultConnectTimeout = 30 * time.Second
	defaultTotalTimeout   = 300 * time.Second
)

// ArtifactKind is the distribution kind of one PackageInfo entry.
type ArtifactKind string

const (
	KindBinary ArtifactKind = "binary"
	KindSource ArtifactKind = "source"
)

// ArtifactRef is one of the downloadable files a release's metadata lists.
type ArtifactRef struct {
	URL      string       `json:"url"`
	Filename string       `json:"filename"`
	Kind     ArtifactKind `json:"kind"`
	SHA256   string       `json:"sha256"`
}

// PackageInfo is the metadata returned for one release.
type PackageInfo struct {
	DisplayName string        `json:"name"`
	Version     string        `json:"version"`
	Artifacts   []ArtifactRef `json:"artifacts"`
	// RequiresDist carries the raw requirement strings declared by this
	// release, unfiltered by markers; filtering is the Resolver's job.
	RequiresDist []string `json:"requires_dist"`
}

// Client is the IndexClient interface, spec.md §4.1.
type Client interface {
	FetchLatest(ctx context.Context, name string) (*PackageInfo, error)
	FetchVersion(ctx context.Context, name, version string) (*PackageInfo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// httpClient is the default Client implementation, talking to a single
// index base URL over HTTP(S).
type httpClient struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *logrus.Entry
}

// New returns a Client against baseURL. token, if non-empty, is sent as a
// bearer token on every metadata request (the INDEX_TOKEN environment
// variable of spec.md §6).
func New(baseURL, token string, log *logrus.Entry) Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil // the retry library's own logger is noisy; we log ourselves
	rc.RetryMax = 4
	rc.HTTPClient.Timeout = defaultTotalTimeout

	return &httpClient{
		baseURL: baseURL,
		token:   token,
		http:    rc,
		log:     log,
	}
}

func (c *httpClient) FetchLatest(ctx context.Context, name string) (*PackageInfo, error) {
	return c.fetch(ctx, name, fmt.Sprintf("%s/packages/%s/latest", c.baseURL, name), name, "")
}

func (c *httpClient) FetchVersion(ctx context.Context, name, version string) (*PackageInfo, error) {
	url := fmt.Sprintf("%s/packages/%s/%s", c.baseURL, name, version)
	return c.fetch(ctx, name, url, name, version)
}

func (c *httpClient) fetch(ctx context.Context, name, url, reqName, reqVersion string) (*PackageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout+defaultTotalTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Name: reqName, Version: reqVersion, Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.WithFields(logrus.Fields{"package": reqName, "version": reqVersion}).Debug("fetching package metadata")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Name: reqName, Version: reqVersion, Cause: ErrTimeout}
		}
		return nil, &Error{Name: reqName, Version: reqVersion, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Name: reqName, Version: reqVersion, Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var info PackageInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &Error{Name: reqName, Version: reqVersion, Cause: fmt.Errorf("malformed metadata: %w", err)}
	}
	return &info, nil
}

func (c *httpClient) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTotalTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Cause: ErrTimeout}
		}
		return nil, &Error{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Cause: fmt.Errorf("unexpected status %s downloading %s", resp.Status, url)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Cause: fmt.Errorf("truncated download: %w", err)}
	}
	return data, nil
}
