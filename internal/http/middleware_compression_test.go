package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveCompressed(t *testing.T, cfg CompressionConfig, h http.Handler, req *http.Request) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	Compression(cfg)(h).ServeHTTP(w, req)
	return w.Result()
}

func gzipRequest(method, acceptEncoding string) *http.Request {
	req := httptest.NewRequest(method, "/home", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer gz.Close()
		r = gz
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestCompression(t *testing.T) {
	body := strings.Repeat("Focos de Incendio ", 500)
	html := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})

	tests := []struct {
		name           string
		acceptEncoding string
		method         string
		level          int
		expectGzip     bool
	}{
		{name: "client accepts gzip", acceptEncoding: "gzip, deflate", level: 6, expectGzip: true},
		{name: "client does not accept gzip", acceptEncoding: "deflate", level: 6},
		{name: "no accept-encoding header", level: 6},
		{name: "gzip explicitly refused", acceptEncoding: "gzip;q=0, br", level: 6},
		{name: "level out of range falls back", acceptEncoding: "gzip", level: 42, expectGzip: true},
		{name: "HEAD is never compressed", acceptEncoding: "gzip", method: http.MethodHead, level: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			resp := serveCompressed(t, CompressionConfig{Level: tt.level}, html, gzipRequest(method, tt.acceptEncoding))
			defer resp.Body.Close()

			gotGzip := resp.Header.Get("Content-Encoding") == "gzip"
			if gotGzip != tt.expectGzip {
				t.Fatalf("expected gzip=%v, got Content-Encoding %q", tt.expectGzip, resp.Header.Get("Content-Encoding"))
			}
			if method == http.MethodHead {
				return
			}
			if got := readBody(t, resp); got != body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(body))
			}
		})
	}
}

func TestCompression_SkipsIncompressibleAndEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "image",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write([]byte("\x89PNG"))
			},
		},
		{
			name: "no content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusNoContent)
			},
		},
		{
			name: "already encoded",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/css")
				w.Header().Set("Content-Encoding", "br")
				_, _ = w.Write([]byte("body{}"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serveCompressed(t, CompressionConfig{}, tt.handler, gzipRequest(http.MethodGet, "gzip"))
			defer resp.Body.Close()
			if resp.Header.Get("Content-Encoding") == "gzip" {
				t.Error("unexpected gzip encoding")
			}
		})
	}
}

func TestCompression_MinSize(t *testing.T) {
	small := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	resp := serveCompressed(t, CompressionConfig{MinSize: 1024}, small, gzipRequest(http.MethodGet, "gzip"))
	defer resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "" {
		t.Fatal("small body should not be compressed")
	}
	if got := readBody(t, resp); got != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", got)
	}

	large := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for range 4 {
			_, _ = w.Write([]byte(strings.Repeat("x", 400)))
		}
	})
	resp = serveCompressed(t, CompressionConfig{MinSize: 1024}, large, gzipRequest(http.MethodGet, "gzip"))
	defer resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatal("large body should be compressed")
	}
	if got := readBody(t, resp); got != strings.Repeat("x", 1600) {
		t.Errorf("unexpected body length %d", len(got))
	}
}

func TestCompression_SkipsUpgradeRequests(t *testing.T) {
	var sawWrapped bool
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, sawWrapped = w.(*gzipResponseWriter)
	})
	req := gzipRequest(http.MethodGet, "gzip")
	req.Header.Set("Upgrade", "websocket")
	resp := serveCompressed(t, CompressionConfig{}, h, req)
	defer resp.Body.Close()
	if sawWrapped {
		t.Error("upgrade request should reach the handler unwrapped")
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := map[string]bool{
		"":                  false,
		"gzip":              true,
		"GZIP":              true,
		"br, gzip;q=0.8":    true,
		"gzip;q=0":          false,
		"gzip; q=0.000":     false,
		"deflate, identity": false,
	}
	for header, want := range tests {
		if got := acceptsGzip(header); got != want {
			t.Errorf("acceptsGzip(%q) = %v, want %v", header, got, want)
		}
	}
}

func TestIsCompressibleContentType(t *testing.T) {
	tests := map[string]bool{
		"text/html; charset=utf-8": true,
		"application/json":         true,
		"image/svg+xml":            true,
		"image/png":                false,
		"":                         false,
	}
	for ct, want := range tests {
		if got := isCompressibleContentType(ct); got != want {
			t.Errorf("isCompressibleContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
