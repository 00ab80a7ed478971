package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
	"github.com/rhuss/weiche/pkg/provider"
	"github.com/rhuss/weiche/pkg/provider/factory"
)

// SecretLookup resolves a credential name to its value. An empty value
// counts as absent.
type SecretLookup func(name string) (string, bool)

// EnvLookup resolves credentials from the process environment.
func EnvLookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	return v, ok && v != ""
}

// AdapterFactory builds an adapter for one provider configuration.
type AdapterFactory func(cfg provider.Config) (provider.Adapter, error)

// RotatorOptions configures a Rotator. Zero values select the defaults.
type RotatorOptions struct {
	Lookup     SecretLookup
	NewAdapter AdapterFactory
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Rotator calls one backend with each of its credentials in turn.
type Rotator struct {
	lookup     SecretLookup
	newAdapter AdapterFactory
	timeout    time.Duration
	httpClient *http.Client
}

// NewRotator creates a Rotator.
func NewRotator(opts RotatorOptions) *Rotator {
	r := &Rotator{
		lookup:     opts.Lookup,
		newAdapter: opts.NewAdapter,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
	}
	if r.lookup == nil {
		r.lookup = EnvLookup
	}
	if r.newAdapter == nil {
		r.newAdapter = factory.New
	}
	return r
}

// Rotation describes how one backend was tried.
type Rotation struct {
	Outcome *provider.Outcome

	// Attempts counts adapter calls; Failures holds the error of each
	// failed call in order.
	Attempts int
	Failures []error
}

// Execute tries the backend with each resolved credential in order and
// returns on the first success. A retryable failure moves on to the next
// credential; any other failure stops rotation for this backend. When
// every credential failed, the returned *provider.Failure carries the last
// observed upstream status, or 500 when none was observed.
func (r *Rotator) Execute(ctx context.Context, pc ProviderConfig, call provider.Call) (*Rotation, error) {
	rot := &Rotation{}
	backend := pc.Backend()

	adapter, err := r.newAdapter(provider.Config{
		Kind:       pc.Provider,
		Model:      pc.Model,
		BaseURL:    pc.BaseURL,
		Timeout:    r.timeout,
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return rot, &provider.Failure{Backend: backend, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}

	keys := r.resolveKeys(pc)
	if len(keys) == 0 {
		if len(pc.APIKeys) > 0 {
			msg := fmt.Sprintf("No API keys available for %s. Missing env vars: %s", backend, strings.Join(pc.APIKeys, ", "))
			slog.Error("credential resolution failed", "backend", backend, "missing", strings.Join(pc.APIKeys, ","))
			return rot, &provider.Failure{Backend: backend, Status: http.StatusInternalServerError, Message: msg}
		}
		// Keyless backend: exactly one call with an empty credential.
		keys = []string{""}
	}

	var (
		lastErr    error
		lastStatus int
	)
	for i, key := range keys {
		if ctx.Err() != nil {
			return rot, ctx.Err()
		}
		if i > 0 {
			observability.CredentialRotationsTotal.WithLabelValues(pc.Provider, pc.Model).Inc()
		}

		debug.Log("routing", "trying credential",
			"backend", backend,
			"credential", debug.Redact(key),
			"attempt", i+1,
			"of", len(keys),
		)

		c := call
		c.Credential = key
		start := time.Now()
		out, err := adapter.Chat(ctx, &c)
		rot.Attempts++

		if err == nil {
			observability.RecordAttempt(pc.Provider, pc.Model, observability.OutcomeSuccess, time.Since(start))
			rot.Outcome = out
			return rot, nil
		}

		rot.Failures = append(rot.Failures, err)
		lastErr = err
		if s := provider.StatusOf(err); s != 0 {
			lastStatus = s
		}

		retryable := provider.IsRetryable(err)
		outcome := observability.OutcomeFatal
		if retryable {
			outcome = observability.OutcomeRetryable
		}
		observability.RecordAttempt(pc.Provider, pc.Model, outcome, time.Since(start))

		slog.Warn("backend call failed",
			"backend", backend,
			"credential", debug.Redact(key),
			"status", provider.StatusOf(err),
			"retryable", retryable,
			"error", err.Error(),
		)
		if !retryable {
			break
		}
	}

	if errors.Is(lastErr, context.Canceled) {
		return rot, lastErr
	}
	return rot, exhausted(backend, lastErr, lastStatus)
}

// resolveKeys looks up the configured credential names, skipping absent ones.
func (r *Rotator) resolveKeys(pc ProviderConfig) []string {
	var keys []string
	for _, name := range pc.APIKeys {
		if v, ok := r.lookup(name); ok && v != "" {
			keys = append(keys, v)
			continue
		}
		slog.Warn("credential not found", "backend", pc.Backend(), "name", name)
	}
	return keys
}

// exhausted builds the failure reported once rotation stops.
func exhausted(backend string, last error, status int) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	var f *provider.Failure
	if errors.As(last, &f) && f.Status == status {
		return f
	}
	msg := "all API keys failed"
	if last != nil {
		msg = last.Error()
		if f != nil {
			msg = f.Message
		}
	}
	return &provider.Failure{Backend: backend, Status: status, Message: msg, Err: last}
}
