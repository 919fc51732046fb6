// Package submitter turns a system-metadata submitter string into a short
// human-readable label, usually a family name.
package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/inovacc/subbot/internal/application"
)

// DefaultOrcidURL is the public ORCID registry.
const DefaultOrcidURL = "https://pub.orcid.org"

var orcidPattern = regexp.MustCompile(`\d{4}-\d{4}-\d{4}-[\dX]{4}`)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	OrcidURL   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Resolver resolves submitter strings to last names.
type Resolver struct {
	orcidURL string
	http     *http.Client
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	orcidURL := strings.TrimSuffix(opts.OrcidURL, "/")
	if orcidURL == "" {
		orcidURL = DefaultOrcidURL
	}

	return &Resolver{
		orcidURL: orcidURL,
		http:     client,
		logger:   logger,
	}
}

// LastName resolves submitter. ORCID subjects are looked up in the
// registry, LDAP distinguished names yield their uid. Anything else is
// reported as absent.
func (r *Resolver) LastName(ctx context.Context, submitter string) (string, bool) {
	switch {
	case strings.Contains(submitter, "orcid"):
		return r.orcidFamilyName(ctx, submitter), true
	case strings.HasPrefix(strings.ToLower(submitter), "uid="):
		return UIDFromDN(submitter), true
	default:
		return "", false
	}
}

// ParseORCID extracts the 16-character ORCID iD from value, or returns
// value unchanged when none is present.
func ParseORCID(value string) string {
	if m := orcidPattern.FindString(value); m != "" {
		return m
	}

	return value
}

// UIDFromDN returns the uid component of an LDAP distinguished name such
// as "uid=jones,o=NCEAS,dc=ecoinformatics,dc=org". The split is naive:
// values containing ',' or '=' are not supported. Without a uid component
// the subject is returned unchanged.
func UIDFromDN(subject string) string {
	for _, part := range strings.Split(strings.ToLower(subject), ",") {
		key, value, ok := strings.Cut(part, "=")
		if ok && strings.TrimSpace(key) == "uid" {
			return value
		}
	}

	return subject
}

type orcidRecord struct {
	// Legacy 1.x message shape.
	Profile *struct {
		Bio *struct {
			Details *struct {
				FamilyName *orcidValue `json:"family-name"`
			} `json:"personal-details"`
		} `json:"orcid-bio"`
	} `json:"orcid-profile"`

	// 2.x/3.x record shape.
	Person *struct {
		Name *struct {
			FamilyName *orcidValue `json:"family-name"`
		} `json:"name"`
	} `json:"person"`
}

type orcidValue struct {
	Value string `json:"value"`
}

func (rec *orcidRecord) familyName() string {
	if p := rec.Profile; p != nil && p.Bio != nil && p.Bio.Details != nil && p.Bio.Details.FamilyName != nil {
		return p.Bio.Details.FamilyName.Value
	}

	if p := rec.Person; p != nil && p.Name != nil && p.Name.FamilyName != nil {
		return p.Name.FamilyName.Value
	}

	return ""
}

// orcidFamilyName falls back to the raw subject on any failure.
func (r *Resolver) orcidFamilyName(ctx context.Context, subject string) string {
	id := ParseORCID(subject)
	u := r.orcidURL + "/" + id

	name, err := r.fetchFamilyName(ctx, u)
	if err != nil {
		r.logger.Warn("orcid lookup failed",
			slog.String("orcid", id),
			slog.String("error", err.Error()),
		)

		return subject
	}

	return name
}

func (r *Resolver) fetchFamilyName(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/orcid+json")
	req.Header.Set("User-Agent", application.UserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned %d", resp.StatusCode)
	}

	var rec orcidRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return "", fmt.Errorf("failed to decode profile: %w", err)
	}

	name := rec.familyName()
	if name == "" {
		return "", fmt.Errorf("profile has no family name")
	}

	return name, nil
}
