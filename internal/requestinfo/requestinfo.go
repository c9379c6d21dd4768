//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (client address, user-agent fingerprint, geolocation, UTM tags, and
//  timestamp).  These structs are inert.  They hold no database handles
//  or large buffers, so they are safe to log or JSON-encode.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup, optional)
//

package requestinfo

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties.
type UA struct {
	Raw      string // Entire User-Agent header
	Browser  string // "Chrome", "Firefox", "Safari", etc.
	Version  string // "124.0.6367"
	OS       string // "macOS", "Windows", "Android", "iOS", etc.
	Device   string // "Desktop", "Phone", "Tablet", "TV", ...
	Platform string // "Mac", "Windows", "Linux", "iPad", "iPhone", ...
	IsBot    bool
}

// Geo holds IP-based geolocation hints.
// These are best-effort and may be empty if the DB has no match.
type Geo struct {
	CountryISO string // "US", "CA", "FR", ...
	City       string // "Chicago", "Paris", ...
}

// RequestInfo is attached to the request context by Enricher.Middleware.
type RequestInfo struct {
	ClientIP  string            // rate-limit key and stored ip column; "unknown" if absent
	UA        UA
	Geo       Geo
	UTM       map[string]string // utm_source, utm_medium, utm_campaign from the query
	URL       *url.URL          // Pointer copy, safe to dereference read-only
	Timestamp time.Time
}

// UTMKeys are the query parameters copied into RequestInfo.UTM.
var UTMKeys = []string{"utm_source", "utm_medium", "utm_campaign"}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by the middleware.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo stores info in ctx.  Handlers and tests that bypass the
// middleware use it directly.
func WithInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// parseUA converts a raw header into our UA struct using uasurfer.
func parseUA(uaHeader string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}

	return UA{
		Raw:      uaHeader,
		Browser:  strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:  trimVersion(u.Browser.Version),
		OS:       osName,
		Device:   deviceTypeToString(u.DeviceType),
		Platform: strings.TrimPrefix(u.OS.Platform.String(), "Platform"),
		IsBot:    u.IsBot(),
	}
}

// trimVersion builds "major.minor.patch" and removes trailing ".0".
func trimVersion(v uasurfer.Version) string {
	out := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
	for strings.HasSuffix(out, ".0") {
		out = strings.TrimSuffix(out, ".0")
	}
	return out
}

// deviceTypeToString maps uasurfer.DeviceType to a user-friendly string.
func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// utmFromQuery copies the non-empty UTM parameters.
func utmFromQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(UTMKeys))
	for _, k := range UTMKeys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			out[k] = v
		}
	}
	return out
}

// lookupGeo returns best-effort Geo data.  A nil reader yields zero Geo.
func lookupGeo(r *geoip2.Reader, ip string) Geo {
	parsed := net.ParseIP(ip)
	if r == nil || parsed == nil {
		return Geo{}
	}
	rec, err := r.City(parsed)
	if err != nil {
		return Geo{}
	}
	return Geo{
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}
