// Package rest stores registrations in a remote resource reachable over HTTP.
//
// The adapter holds no registration state. Every operation is one or more
// exchanges with the resource and all expiration filtering happens locally.
package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/architeacher/u2f-registrations/internal/adapters/wire"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/circuitbreaker"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	contentTypeJSON     = "application/json"
	defaultMaxBodyBytes = 16 << 20
)

var errServerStatus = errors.New("resource server error")

type (
	Config struct {
		BaseURL        string
		Timeout        time.Duration
		CircuitBreaker circuitbreaker.Config
	}

	// Repository translates the device repository contract into resource exchanges.
	Repository struct {
		baseURL      string
		timeout      time.Duration
		maxBodyBytes int64
		client       *http.Client
		cb      *circuitbreaker.CircuitBreaker[*response]
		clock   clock.Clock
		policy  model.ExpirationPolicy
		logger  logger.Logger
	}

	response struct {
		status   int
		body     []byte
		tooLarge bool
	}
)

func NewRepository(
	cfg Config,
	clk clock.Clock,
	policy model.ExpirationPolicy,
	log logger.Logger,
	opts ...Option,
) (*Repository, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid resource URL %q", cfg.BaseURL)
	}

	if clk == nil {
		clk = clock.System()
	}

	repo := &Repository{
		baseURL:      base.String(),
		timeout:      cfg.Timeout,
		maxBodyBytes: defaultMaxBodyBytes,
		clock:        clk,
		policy:       policy,
		logger:       log.Component("rest_repository"),
	}

	for _, opt := range opts {
		opt(repo)
	}

	if repo.client == nil {
		repo.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	if repo.cb == nil {
		cbCfg := cfg.CircuitBreaker
		if cbCfg.Name == "" {
			cbCfg.Name = "registration-resource"
		}

		cbCfg.OnStateChange = func(name, from, to string) {
			repo.logger.Warn().
				Str("breaker", name).
				Str("from", from).
				Str("to", to).
				Msg("circuit breaker state changed")
		}

		repo.cb = circuitbreaker.New[*response](cbCfg)
	}

	return repo, nil
}

func (r *Repository) RegisterDevice(ctx context.Context, reg *model.Registration) (*model.Registration, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	candidate := reg.Clone()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = r.clock.Now()
	}

	payload, err := wire.Encode(candidate)
	if err != nil {
		return nil, err
	}

	resp, err := r.exchange(ctx, http.MethodPost, r.baseURL, payload)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.status) {
		return nil, unexpectedStatus(http.MethodPost, resp)
	}

	persisted, err := wire.DecodeEnvelope(resp.body)
	if err != nil {
		return nil, err
	}

	if len(persisted) != 1 {
		return nil, fmt.Errorf("%w: expected one persisted registration, got %d", model.ErrCorruptData, len(persisted))
	}

	return persisted[0], nil
}

func (r *Repository) GetRegisteredDevice(ctx context.Context, id model.RegistrationID) (*model.Registration, error) {
	all, err := r.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()

	for _, reg := range all {
		if reg.ID == id && !r.policy.IsExpired(reg, now) {
			return reg, nil
		}
	}

	return nil, model.ErrRegistrationNotFound
}

func (r *Repository) GetRegisteredDevices(ctx context.Context, owner string) ([]*model.Registration, error) {
	all, err := r.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	return r.policy.Active(model.FilterByOwner(all, owner), r.clock.Now()), nil
}

func (r *Repository) ListRegisteredDevices(ctx context.Context) ([]*model.Registration, error) {
	all, err := r.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	return r.policy.Active(all, r.clock.Now()), nil
}

func (r *Repository) IsActivated(ctx context.Context, owner string) (bool, error) {
	regs, err := r.GetRegisteredDevices(ctx, owner)
	if err != nil {
		return false, err
	}

	return len(regs) > 0, nil
}

// RemoveDevice deletes one registration. The zero id names nothing and never
// reaches the resource.
func (r *Repository) RemoveDevice(ctx context.Context, id model.RegistrationID) error {
	if id.IsZero() {
		return nil
	}

	target, err := url.JoinPath(r.baseURL, id.String())
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRegistrationID, err)
	}

	resp, err := r.exchange(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}

	if isSuccess(resp.status) || resp.status == http.StatusNotFound {
		return nil
	}

	return unexpectedStatus(http.MethodDelete, resp)
}

// RemoveAll deletes the owner's registrations. An empty owner owns nothing.
func (r *Repository) RemoveAll(ctx context.Context, owner string) error {
	if owner == "" {
		return nil
	}

	target := r.baseURL + "?" + url.Values{"owner": []string{owner}}.Encode()

	return r.delete(ctx, target)
}

func (r *Repository) PurgeExpired(ctx context.Context) (int, error) {
	all, err := r.fetchAll(ctx)
	if err != nil {
		return 0, err
	}

	expired := r.policy.Expired(all, r.clock.Now())

	for index, reg := range expired {
		if err := r.RemoveDevice(ctx, reg.ID); err != nil {
			return index, err
		}
	}

	if len(expired) > 0 {
		r.logger.Info().Int("removed", len(expired)).Msg("expired registrations purged")
	}

	return len(expired), nil
}

func (r *Repository) Clear(ctx context.Context) error {
	return r.delete(ctx, r.baseURL)
}

// Ping checks that the resource answers a listing.
func (r *Repository) Ping(ctx context.Context) error {
	_, err := r.fetchAll(ctx)

	return err
}

func (r *Repository) fetchAll(ctx context.Context) ([]*model.Registration, error) {
	resp, err := r.exchange(ctx, http.MethodGet, r.baseURL, nil)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.status) {
		return nil, unexpectedStatus(http.MethodGet, resp)
	}

	return wire.DecodeEnvelope(resp.body)
}

func (r *Repository) delete(ctx context.Context, target string) error {
	resp, err := r.exchange(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}

	if !isSuccess(resp.status) {
		return unexpectedStatus(http.MethodDelete, resp)
	}

	return nil
}

// exchange performs one request through the circuit breaker. Transport
// failures and 5xx answers count against the breaker and come back wrapped in
// model.ErrStoreUnavailable. An oversized body is corrupt data.
func (r *Repository) exchange(ctx context.Context, method, target string, payload []byte) (*response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()

	resp, err := circuitbreaker.Execute(r.cb, func() (*response, error) {
		return r.do(ctx, method, target, payload)
	})

	log := r.logger.WithContext(ctx)

	if err != nil {
		log.Warn().
			Err(err).
			Str("method", method).
			Str("url", target).
			Dur("duration", time.Since(start)).
			Msg("resource exchange failed")

		return nil, fmt.Errorf("%w: %s %s: %v", model.ErrStoreUnavailable, method, target, err)
	}

	if resp.tooLarge {
		log.Warn().
			Str("method", method).
			Str("url", target).
			Int64("limit", r.maxBodyBytes).
			Msg("resource response too large")

		return nil, fmt.Errorf("%w: %s %s: response too large, exceeds %d bytes",
			model.ErrCorruptData, method, target, r.maxBodyBytes)
	}

	log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.status).
		Dur("duration", time.Since(start)).
		Msg("resource exchange")

	return resp, nil
}

func (r *Repository) do(ctx context.Context, method, target string, payload []byte) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", contentTypeJSON)

	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	if key, ok := idempotency.FromContext(ctx); ok && method != http.MethodGet {
		req.Header.Set(idempotency.HeaderName, key)
	}

	if requestID, ok := ctx.Value(logger.ContextKeyRequestID).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, r.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > r.maxBodyBytes {
		return &response{status: httpResp.StatusCode, tooLarge: true}, nil
	}

	resp := &response{status: httpResp.StatusCode, body: data}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return resp, fmt.Errorf("%w: status %d", errServerStatus, httpResp.StatusCode)
	}

	return resp, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// unexpectedStatus classifies a non-2xx answer. A client error the resource
// will repeat for the same request is permanent. Missing routes, timeouts,
// in-flight conflicts, throttling and server errors stay retryable.
func unexpectedStatus(method string, resp *response) error {
	switch resp.status {
	case http.StatusNotFound, http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s answered %d", model.ErrStoreUnavailable, method, resp.status)
	}

	if resp.status >= http.StatusBadRequest && resp.status < http.StatusInternalServerError {
		return fmt.Errorf("%w: %s answered %d", model.ErrRequestRejected, method, resp.status)
	}

	return fmt.Errorf("%w: %s answered %d", model.ErrStoreUnavailable, method, resp.status)
}
