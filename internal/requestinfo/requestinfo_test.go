package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avct/uasurfer"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-Ip": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "192.0.2.9"}, "10.0.0.2:5000", "192.0.2.9"},
		{"forwarded beats real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-Ip": "198.51.100.4"}, "", "203.0.113.7"},
		{"peer address", nil, "10.0.0.2:5000", "10.0.0.2"},
		{"nothing usable", nil, "", Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/intake/contact", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tc.want {
				t.Fatalf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMiddlewareAttachesInfo(t *testing.T) {
	e, err := New("", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got *RequestInfo
	h := e.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/intake/booking?utm_source=ads&utm_medium=&ref=x", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got == nil {
		t.Fatal("RequestInfo not attached")
	}
	if got.ClientIP != "203.0.113.7" {
		t.Errorf("ClientIP = %q", got.ClientIP)
	}
	if got.UTM["utm_source"] != "ads" || len(got.UTM) != 1 {
		t.Errorf("UTM = %v", got.UTM)
	}
	if !got.UA.IsBot {
		t.Errorf("Googlebot should be flagged as bot")
	}
	if got.Timestamp.IsZero() {
		t.Errorf("Timestamp not set")
	}
}

func TestFromContextWithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if FromContext(r.Context()) != nil {
		t.Fatal("expected nil RequestInfo")
	}
}

func TestNewMissingGeoDB(t *testing.T) {
	if _, err := New("/nonexistent/GeoLite2-City.mmdb", nil); err == nil {
		t.Fatal("expected error for missing geo database")
	}
}

func TestTrimVersion(t *testing.T) {
	cases := map[uasurfer.Version]string{
		{Major: 124, Minor: 0, Patch: 6367}: "124.0.6367",
		{Major: 17, Minor: 4, Patch: 0}:     "17.4",
		{Major: 11, Minor: 0, Patch: 0}:     "11",
		{}:                                  "0",
	}
	for v, want := range cases {
		if got := trimVersion(v); got != want {
			t.Errorf("trimVersion(%+v) = %q, want %q", v, got, want)
		}
	}
}
