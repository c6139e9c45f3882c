package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"maitred/internal/middleware"
)

// newUpstreamProxy builds the reverse proxy for the backend upstream. The
// path is forwarded verbatim and the client's original Host header is
// preserved so the upstream can reconstruct absolute URLs. A bounded
// response-header timeout keeps a hanging backend from holding connections
// open indefinitely.
func newUpstreamProxy(target *url.URL, timeout time.Duration) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		// The single-host director rewrites req.URL but not req.Host, so the
		// Host header the client sent travels through untouched.
		director(req)
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Header.Set("X-Forwarded-Proto", forwardedProto(req))
		req.Header.Set("X-Real-IP", middleware.ClientIP(req))
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if isTimeout(err) {
			log.Error().Err(err).Str("path", r.URL.Path).Str("upstream", target.Host).Msg("Upstream timeout")
			upstreamErrors.WithLabelValues("timeout").Inc()
			http.Error(w, "Gateway Timeout", http.StatusGatewayTimeout)
			return
		}

		log.Error().Err(err).Str("path", r.URL.Path).Str("upstream", target.Host).Msg("Upstream unreachable")
		upstreamErrors.WithLabelValues("unreachable").Inc()
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return proxy
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func forwardedProto(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
