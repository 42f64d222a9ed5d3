package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// shellPath is the cached main page served as a fallback for failed
// document fetches (SPA fallback).
const shellPath = "/"

// PrecachePaths is the fixed set of pages and assets populated at startup.
var PrecachePaths = []string{
	"/",
	"/index.html",
	"/offline.html",
	"/assets/app.js",
	"/assets/app.css",
}

// Gateway fronts an upstream origin with the offline cache. GET requests
// are served with one of two strategies: navigations go network-first with
// the cache as fallback; assets are served from cache immediately with a
// fire-and-forget background refresh. Anything else is proxied untouched.
type Gateway struct {
	store     *Store
	cacheName string
	upstream  *url.URL
	client    *http.Client
}

// NewGateway creates a Gateway caching under cacheName in front of the
// upstream origin.
func NewGateway(store *Store, cacheName, upstream string) (*Gateway, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream must be http(s), got %q", upstream)
	}
	return &Gateway{
		store:     store,
		cacheName: cacheName,
		upstream:  u,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Install pre-populates the cache with the fixed page/asset set. Individual
// fetch failures are logged and skipped; startup proceeds regardless.
func (g *Gateway) Install(ctx context.Context) {
	for _, path := range PrecachePaths {
		entry, err := g.fetch(ctx, http.MethodGet, path, nil)
		if err != nil || entry.Status != http.StatusOK {
			slog.Warn("Precache skipped", "path", path, "error", err)
			continue
		}
		if err := g.store.Put(ctx, g.cacheName, entry); err != nil {
			slog.Warn("Precache store failed", "path", path, "error", err)
		}
	}
	slog.Info("Cache install complete", "cache", g.cacheName)
}

// Activate retires entries cached under any other cache version.
func (g *Gateway) Activate(ctx context.Context) error {
	deleted, err := g.store.DropOtherCaches(ctx, g.cacheName)
	if err != nil {
		return err
	}
	slog.Info("Cache activate complete", "cache", g.cacheName, "stale_entries_deleted", deleted)
	return nil
}

// ServeHTTP dispatches a request to the appropriate fetch strategy.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only GETs participate in caching; everything else passes through.
	if r.Method != http.MethodGet {
		g.passThrough(w, r)
		return
	}

	if isNavigation(r) {
		g.networkFirst(w, r)
		return
	}
	g.cacheFirst(w, r)
}

// isNavigation reports whether the request is a page navigation or
// document fetch.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// networkFirst attempts the network, refreshing the cache on success. On
// network failure it serves the cached copy if present, else the cached
// main page.
func (g *Gateway) networkFirst(w http.ResponseWriter, r *http.Request) {
	path := r.URL.RequestURI()

	entry, err := g.fetch(r.Context(), http.MethodGet, path, r.Header)
	if err == nil {
		if entry.Status == http.StatusOK {
			if putErr := g.store.Put(r.Context(), g.cacheName, entry); putErr != nil {
				slog.Warn("Cache refresh failed", "path", path, "error", putErr)
			}
		}
		writeEntry(w, entry)
		return
	}

	slog.Debug("Network failed for navigation, trying cache", "path", path, "error", err)
	if cached, cacheErr := g.store.Get(r.Context(), g.cacheName, path); cacheErr == nil && cached != nil {
		writeEntry(w, cached)
		return
	}
	g.serveShell(w, r)
}

// cacheFirst serves the cached entry immediately, revalidating in the
// background, and falls back to the network for uncached URLs.
func (g *Gateway) cacheFirst(w http.ResponseWriter, r *http.Request) {
	path := r.URL.RequestURI()

	if cached, err := g.store.Get(r.Context(), g.cacheName, path); err == nil && cached != nil {
		writeEntry(w, cached)
		go g.revalidate(path)
		return
	}

	entry, err := g.fetch(r.Context(), http.MethodGet, path, r.Header)
	if err != nil {
		// A document request can still fall back to the app shell;
		// plain assets cannot.
		if isDocumentRequest(r) {
			g.serveShell(w, r)
			return
		}
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if entry.Status == http.StatusOK {
		if putErr := g.store.Put(r.Context(), g.cacheName, entry); putErr != nil {
			slog.Warn("Cache store failed", "path", path, "error", putErr)
		}
	}
	writeEntry(w, entry)
}

// revalidate re-fetches a URL and updates the cache. Failures are silently
// dropped; the stale entry keeps serving.
func (g *Gateway) revalidate(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	entry, err := g.fetch(ctx, http.MethodGet, path, nil)
	if err != nil || entry.Status != http.StatusOK {
		return
	}
	if err := g.store.Put(ctx, g.cacheName, entry); err != nil {
		slog.Debug("Background revalidation store failed", "path", path, "error", err)
	}
}

// isDocumentRequest is a looser check than isNavigation used on the asset
// path: a fetch that accepts HTML may still fall back to the shell.
func isDocumentRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// serveShell returns the cached main page (SPA fallback).
func (g *Gateway) serveShell(w http.ResponseWriter, r *http.Request) {
	shell, err := g.store.Get(r.Context(), g.cacheName, shellPath)
	if err != nil || shell == nil {
		http.Error(w, "offline and no cached shell", http.StatusServiceUnavailable)
		return
	}
	writeEntry(w, shell)
}

// passThrough proxies a non-GET request to the upstream without caching.
func (g *Gateway) passThrough(w http.ResponseWriter, r *http.Request) {
	target := g.upstream.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := g.client.Do(req)
	if err != nil {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close upstream body", "error", closeErr)
		}
	}()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("Failed to stream upstream body", "error", err)
	}
}

// fetch issues an upstream request and buffers the response as an Entry.
func (g *Gateway) fetch(ctx context.Context, method, path string, header http.Header) (*Entry, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse request path: %w", err)
	}
	target := g.upstream.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close upstream body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body for %s: %w", path, err)
	}

	return &Entry{
		URL:      path,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		CachedAt: time.Now(),
	}, nil
}

func writeEntry(w http.ResponseWriter, entry *Entry) {
	copyHeader(w.Header(), entry.Header)
	w.WriteHeader(entry.Status)
	if _, err := w.Write(entry.Body); err != nil {
		slog.Debug("Failed to write cached body", "error", err)
	}
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
