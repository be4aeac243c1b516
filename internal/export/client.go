// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package export

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// userAgent identifies the SDK on outbound requests.
const userAgent = "spyglass-go/" + telemetry.Version

// NewHTTPClient builds the pooled client used for ingestion. TLS 1.2 minimum,
// keep-alive pooling, and a User-Agent/logging transport. The timeout applies
// per request; per-attempt deadlines are layered on by the caller's context.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: &loggingTransport{base: base, logger: logger},
		Timeout:   timeout,
	}
}

// loggingTransport sets the User-Agent and logs each request at debug level
// with the URL sanitized. Never logs headers, so credentials stay out of
// log output.
type loggingTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil {
		attrs := []any{
			"method", req.Method,
			"url", sanitizeURL(req.URL),
			"duration", time.Since(start),
		}
		if err != nil {
			t.logger.Debug("http request failed", append(attrs, "error", err)...)
		} else {
			t.logger.Debug("http request", append(attrs, "status", resp.StatusCode)...)
		}
	}
	return resp, err
}

// sensitiveParams are query parameters redacted from logged URLs.
var sensitiveParams = map[string]bool{
	"api_key": true,
	"apikey":  true,
	"token":   true,
	"key":     true,
	"secret":  true,
}

func sanitizeURL(u *url.URL) string {
	if u.RawQuery == "" {
		return u.String()
	}
	clean := *u
	q := clean.Query()
	for param := range q {
		if sensitiveParams[param] {
			q.Set(param, "REDACTED")
		}
	}
	clean.RawQuery = q.Encode()
	return clean.String()
}
