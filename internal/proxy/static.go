package proxy

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"maitred/internal/routes"
)

// resolvePath maps a request path onto a file under the rule's root. The
// remainder after the prefix is cleaned as a rooted slash path first, so a
// crafted ../ sequence can never climb above the root.
func resolvePath(rule routes.Rule, reqPath string) string {
	rel := strings.TrimPrefix(reqPath, rule.Prefix)
	clean := path.Clean("/" + rel)
	return filepath.Join(rule.Dest.Root, filepath.FromSlash(clean))
}

// serveStatic serves collected assets. Missing files are a plain 404: a
// fallback page here would mask broken asset references.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, rule routes.Rule) {
	target := resolvePath(rule, r.URL.Path)

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, target)
}

// serveMedia serves uploaded media. This is the only location with directory
// listing enabled; an empty directory is a valid listing, not an error.
func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request, rule routes.Rule) {
	target := resolvePath(rule, r.URL.Path)

	info, err := os.Stat(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		listDirectory(w, r, target)
		return
	}

	http.ServeFile(w, r, target)
}

// serveDocs serves the API documentation root. If the exact resource is
// absent the fallback document is served instead of a not-found error, so
// /api/docs/ always lands on the ReDoc page.
func (s *Server) serveDocs(w http.ResponseWriter, r *http.Request, rule routes.Rule) {
	target := resolvePath(rule, r.URL.Path)

	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		http.ServeFile(w, r, target)
		return
	}

	fallback := filepath.Join(rule.Dest.Root, rule.Dest.Fallback)
	if _, err := os.Stat(fallback); err != nil {
		log.Error().Str("fallback", fallback).Msg("Documentation fallback document missing")
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, fallback)
}

// serveSPA serves the frontend bundle: the exact file when it exists,
// otherwise the index document with a success status so the client-side
// router takes over navigation.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request, rule routes.Rule) {
	target := resolvePath(rule, r.URL.Path)

	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		http.ServeFile(w, r, target)
		return
	}

	index := filepath.Join(rule.Dest.Root, rule.Dest.Fallback)
	if _, err := os.Stat(index); err != nil {
		log.Error().Str("index", index).Msg("SPA index document missing")
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, index)
}

func listDirectory(w http.ResponseWriter, r *http.Request, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><head><title>Index of %s</title></head><body>\n", html.EscapeString(r.URL.Path))
	fmt.Fprintf(w, "<h1>Index of %s</h1><hr><pre>\n", html.EscapeString(r.URL.Path))
	fmt.Fprint(w, "<a href=\"../\">../</a>\n")
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		escaped := html.EscapeString(name)
		fmt.Fprintf(w, "<a href=\"%s\">%s</a>\n", escaped, escaped)
	}
	fmt.Fprint(w, "</pre><hr></body></html>\n")
}
