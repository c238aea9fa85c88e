// Package company holds the organization's branding.
//
// Branding is background data: fetch failures never reach the caller, and the
// last good value survives restarts through local storage.
package company

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
	"github.com/felixgeelhaar/okr/internal/storage"
)

// DefaultTitle is shown when no company name is known.
const DefaultTitle = "Objectives Management"

// Store is the company branding store
type Store struct {
	client  *api.Client
	persist storage.Store
	logger  *log.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	name    string
	logoURL string
	loading bool
}

// New creates a company store persisting to persist.
func New(client *api.Client, persist storage.Store, logger *log.Logger, m *metrics.Metrics) *Store {
	return &Store{
		client:  client,
		persist: persist,
		logger:  log.OrDefault(logger).WithComponent("company"),
		metrics: m,
	}
}

// Company returns the current branding.
func (s *Store) Company() domain.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Company{Name: s.name, LogoURL: s.logoURL}
}

// HasData reports whether a name or logo is known.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name != "" || s.logoURL != ""
}

// Title returns "<name> - Objectives Management", or DefaultTitle without a name.
func (s *Store) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.name == "" {
		return DefaultTitle
	}
	return s.name + " - " + DefaultTitle
}

// Set replaces the branding. It is persisted only when a name or logo is present.
func (s *Store) Set(c domain.Company) {
	s.mu.Lock()
	s.name = c.Name
	s.logoURL = c.LogoURL
	s.mu.Unlock()

	if c.Name == "" && c.LogoURL == "" {
		return
	}
	stored := domain.StoredCompany{Name: c.Name, LogoURL: c.LogoURL}
	if err := storage.SetJSON(s.persist, storage.KeyCompanyData, stored); err != nil {
		s.logger.WithError(err).Warn("failed to persist company data")
	}
}

// LoadFromStorage restores persisted branding. A corrupt entry is removed.
func (s *Store) LoadFromStorage() {
	var stored domain.StoredCompany
	ok, err := storage.GetJSON(s.persist, storage.KeyCompanyData, &stored)
	if err != nil {
		s.logger.WithError(err).Error("error parsing stored company data")
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	s.name = stored.Name
	s.logoURL = stored.LogoURL
	s.mu.Unlock()
}

// Fetch returns the known branding, loading it from the server when none is held.
// It never fails: a request error yields an empty Fallback result.
func (s *Store) Fetch(ctx context.Context) cache.Result[domain.Company] {
	s.mu.Lock()
	if (s.name != "" || s.logoURL != "") && !s.loading {
		c := domain.Company{Name: s.name, LogoURL: s.logoURL}
		s.mu.Unlock()
		return cache.Degraded(c, cache.SourceStale, nil)
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	var c domain.Company
	if err := s.client.Get(ctx, "/company", nil, &c); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error loading company data")
		s.metrics.ObserveFallback("company", cache.SourceFallback.String())
		return cache.Degraded(domain.Company{}, cache.SourceFallback, err)
	}
	s.Set(c)
	return cache.Fresh(c)
}

// Clear forgets the branding and removes it from storage.
func (s *Store) Clear() {
	s.mu.Lock()
	s.name = ""
	s.logoURL = ""
	s.mu.Unlock()

	if err := s.persist.Remove(storage.KeyCompanyData); err != nil {
		s.logger.WithError(err).Warn("failed to remove company data")
	}
}
