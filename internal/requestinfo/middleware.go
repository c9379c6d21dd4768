// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits right after chi's RequestID and before the intake
handlers.  For every request it:

  1. Resolves the client address: first entry of X-Forwarded-For, then
     X-Real-Ip, then CF-Connecting-IP, then the host part of
     r.RemoteAddr.  If none yields anything the address is "unknown".
  2. Parses the User-Agent header.
  3. Performs a GeoLite2 lookup when a database was configured.
  4. Copies utm_* query parameters.
  5. Stores a `*RequestInfo` value and a request-scoped logger (request
     id, client ip) in the request context.

Notes
-----
  • The client address is whatever the proxy chain reports.  It is the
    rate-limit key, so deploy behind a proxy that overwrites X-Forwarded-For.
  • The geo reader is read-only and safe under concurrency.
*/
package requestinfo

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/yanizio/adept-intake/internal/logger"
)

// Unknown is the client address used when no header or peer is usable.
const Unknown = "unknown"

/*──────────────────────────── enricher ─────────────────────────────────────*/

// Enricher owns the optional GeoLite2 handle.
type Enricher struct {
	geo *geoip2.Reader
	log *zap.SugaredLogger
}

// New opens the GeoLite2-City database at geoPath.  An empty path disables
// geolocation.
func New(geoPath string, log *zap.SugaredLogger) (*Enricher, error) {
	if log == nil {
		log = zap.S()
	}
	e := &Enricher{log: log}
	if geoPath == "" {
		return e, nil
	}
	r, err := geoip2.Open(geoPath)
	if err != nil {
		return nil, err
	}
	e.geo = r
	return e, nil
}

// Close releases the geo database.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}

/*──────────────────────────── middleware ───────────────────────────────────*/

// Middleware wraps an http.Handler, attaches *RequestInfo, and forwards.
func (e *Enricher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		info := &RequestInfo{
			ClientIP:  ip,
			UA:        parseUA(r.UserAgent()),
			Geo:       lookupGeo(e.geo, ip),
			UTM:       utmFromQuery(r.URL.Query()),
			URL:       r.URL,
			Timestamp: time.Now().UTC(),
		}

		reqLog := e.log.With("request_id", middleware.GetReqID(r.Context()), "ip", ip)
		reqLog.Debugw("request info",
			"country", info.Geo.CountryISO,
			"city", info.Geo.City,
			"browser", info.UA.Browser,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
			"path", r.URL.Path,
		)

		ctx := WithInfo(r.Context(), info)
		ctx = logger.WithContext(ctx, reqLog)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

// clientIP returns the first usable proxy-reported address, else the peer
// host, else Unknown.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	for _, h := range []string{"X-Real-Ip", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return Unknown
}
