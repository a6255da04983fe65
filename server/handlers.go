package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akarasev/feedsmith/pkg/feed"
	"github.com/akarasev/feedsmith/pkg/store"
)

// generateRequest is the payload for feed generation, a single "url" is
// accepted as shorthand for a one-element "urls" list
type generateRequest struct {
	URLs  []string `json:"urls"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}

// generateHandler aggregates the requested sources into one RSS document,
// stores it and returns the retrieval reference
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	sources := req.URLs
	if len(sources) == 0 && req.URL != "" {
		sources = []string{req.URL}
	}

	sources = cleanSources(sources)
	if len(sources) == 0 {
		renderError(w, r, fmt.Errorf("no URLs provided"), http.StatusBadRequest)
		return
	}

	doc, err := s.aggregator.Aggregate(ctx, sources, strings.TrimSpace(req.Title))
	if err != nil {
		log.Printf("[ERROR] aggregation failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	rss, err := feed.RenderRSS(doc)
	if err != nil {
		log.Printf("[ERROR] failed to render RSS: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	name, err := s.store.Save(ctx, []byte(rss), doc.Title, len(sources))
	if err != nil {
		log.Printf("[ERROR] failed to store document: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	feedURL := "/get_feed/" + name
	if base := s.config.GetBaseURL(); base != "" {
		feedURL = strings.TrimRight(base, "/") + feedURL
	}

	log.Printf("[INFO] generated feed %s from %d sources, %d entries", name, len(sources), len(doc.Entries))
	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"msg":      true,
		"feed_url": feedURL,
	})
}

// getFeedHandler serves a previously generated document by its reference
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	content, err := s.store.Load(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		renderError(w, r, fmt.Errorf("feed not found"), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[ERROR] failed to load document %s: %v", name, err)
		renderError(w, r, fmt.Errorf("failed to load feed"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write(content); err != nil {
		log.Printf("[ERROR] failed to write RSS response: %v", err)
	}
}

// listFeedsHandler returns recent generation history
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context(), 50)
	if err != nil {
		log.Printf("[ERROR] failed to list documents: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{"feeds": records})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// cleanSources drops blanks and entries that are not absolute http(s) URLs,
// order is preserved and duplicates are kept
func cleanSources(sources []string) []string {
	cleaned := make([]string, 0, len(sources))
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		u, err := url.Parse(src)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		cleaned = append(cleaned, src)
	}
	return cleaned
}
