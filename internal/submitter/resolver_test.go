package submitter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const orcidSubject = "http://orcid.org/0000-0002-1825-0097"

func newTestResolver(t *testing.T, handler http.HandlerFunc) *Resolver {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewResolver(ResolverOptions{
		OrcidURL:   srv.URL + "/",
		HTTPClient: srv.Client(),
		Logger:     quietLogger,
	})
}

func TestParseORCID(t *testing.T) {
	assert.Equal(t, "0000-0002-1825-0097", ParseORCID(orcidSubject))
	assert.Equal(t, "0000-0002-1694-233X", ParseORCID("https://orcid.org/0000-0002-1694-233X"))
	assert.Equal(t, "no id here", ParseORCID("no id here"))
}

func TestUIDFromDN(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{subject: "uid=jones,o=NCEAS,dc=ecoinformatics,dc=org", want: "jones"},
		{subject: "UID=Jones,O=NCEAS,DC=ecoinformatics,DC=org", want: "jones"},
		{subject: "cn=nobody,dc=org", want: "cn=nobody,dc=org"},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, UIDFromDN(tt.subject))
		})
	}
}

func TestResolver_ORCID(t *testing.T) {
	var gotPath, gotAccept string

	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotAccept = req.Header.Get("Accept")

		_, _ = io.WriteString(w, `{"person":{"name":{"given-names":{"value":"Josiah"},"family-name":{"value":"Carberry"}}}}`)
	})

	name, ok := r.LastName(context.Background(), orcidSubject)
	require.True(t, ok)
	assert.Equal(t, "Carberry", name)
	assert.Equal(t, "/0000-0002-1825-0097", gotPath)
	assert.Equal(t, "application/orcid+json", gotAccept)
}

func TestResolver_ORCIDLegacyProfile(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"orcid-profile":{"orcid-bio":{"personal-details":{"family-name":{"value":"Carberry"}}}}}`)
	})

	name, ok := r.LastName(context.Background(), orcidSubject)
	require.True(t, ok)
	assert.Equal(t, "Carberry", name)
}

func TestResolver_ORCIDFailureReturnsSubject(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "{")
			},
		},
		{
			name: "no family name",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"person":{"name":null}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.handler)

			name, ok := r.LastName(context.Background(), orcidSubject)
			require.True(t, ok)
			assert.Equal(t, orcidSubject, name)
		})
	}
}

func TestResolver_DistinguishedName(t *testing.T) {
	r := NewResolver(ResolverOptions{Logger: quietLogger})

	name, ok := r.LastName(context.Background(), "uid=jones,o=NCEAS,dc=ecoinformatics,dc=org")
	require.True(t, ok)
	assert.Equal(t, "jones", name)
}

func TestResolver_UnknownSubject(t *testing.T) {
	r := NewResolver(ResolverOptions{Logger: quietLogger})

	_, ok := r.LastName(context.Background(), "CN=Jane Doe A12345,O=Google,C=US,DC=cilogon,DC=org")
	assert.False(t, ok)

	_, ok = r.LastName(context.Background(), "")
	assert.False(t, ok)
}
