// Package translate provides a best-effort machine translation client.
//
// Translation is an annotation, not a dependency: callers render the
// original text regardless, so the client never returns an error. Any
// network, timeout, or malformed-response failure simply reports that no
// translation is available.
package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://translate.googleapis.com/translate_a/single"
	defaultTimeout = 10 * time.Second

	// The endpoint rejects requests without a browser-looking agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Client calls a Google-Translate-style endpoint. The response body is a
// JSON array whose first element is an ordered list of
// [translated-fragment, original-fragment, ...] tuples; the translation is
// the concatenation of the fragments.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a translation client. An empty baseURL selects the
// public endpoint; a nil httpClient gets a client with the fixed
// translation timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Translate renders text into the target language code ("ar", "en"). The
// source language is always auto-detected server-side. Failure of any kind
// reports ok=false; Translate never retries and never returns an error.
func (c *Client) Translate(ctx context.Context, text, target string) (translated string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var decoded []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || len(decoded) == 0 {
		return "", false
	}

	var fragments [][]json.RawMessage
	if err := json.Unmarshal(decoded[0], &fragments); err != nil {
		return "", false
	}

	var b strings.Builder
	for _, fragment := range fragments {
		if len(fragment) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(fragment[0], &piece); err != nil {
			continue
		}
		b.WriteString(piece)
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", false
	}
	return out, true
}
