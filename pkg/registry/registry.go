package registry

import (
	"context"
	"fmt"
	"sync"
)

// Account is an external billing account the sync pulls usage from.
type Account struct {
	// ID uniquely identifies the account within the registry.
	ID string `yaml:"id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// CredentialRef is an opaque reference handed to the provider
	// client for authentication. It is never logged.
	CredentialRef string `yaml:"credential_ref"`

	// DefaultSubjectID receives rows whose resource key has no
	// explicit assignment. Empty means unassigned rows are unroutable.
	DefaultSubjectID string `yaml:"default_subject_id"`
}

// Assignment maps a provider resource key to an owning subject.
type Assignment struct {
	AccountID   string `yaml:"account_id"`
	ResourceKey string `yaml:"resource_key"`
	SubjectID   string `yaml:"subject_id"`
}

// UnroutableError reports a usage row that no assignment or account
// default could attribute to a subject.
type UnroutableError struct {
	AccountID   string
	ResourceKey string
}

func (e *UnroutableError) Error() string {
	return fmt.Sprintf("registry: no subject for resource %q in account %q", e.ResourceKey, e.AccountID)
}

// Registry resolves accounts and routes resource keys to subjects.
type Registry interface {
	// Accounts returns all registered billing accounts.
	Accounts(ctx context.Context) ([]Account, error)

	// SubjectFor resolves the owning subject for a resource key within
	// an account. It returns *UnroutableError when neither an explicit
	// assignment nor an account default applies.
	SubjectFor(ctx context.Context, accountID, resourceKey string) (string, error)
}

// StaticRegistry serves accounts and assignments loaded from
// configuration. Replace swaps the full dataset atomically, which is
// how config hot reload propagates.
type StaticRegistry struct {
	mu          sync.RWMutex
	accounts    []Account
	assignments map[string]string // accountID + "\x00" + resourceKey -> subjectID
	defaults    map[string]string // accountID -> default subject
}

// NewStaticRegistry builds a registry from the given accounts and
// assignments.
func NewStaticRegistry(accounts []Account, assignments []Assignment) *StaticRegistry {
	r := &StaticRegistry{}
	r.Replace(accounts, assignments)
	return r
}

// Replace swaps in a new set of accounts and assignments.
func (r *StaticRegistry) Replace(accounts []Account, assignments []Assignment) {
	byKey := make(map[string]string, len(assignments))
	for _, a := range assignments {
		byKey[a.AccountID+"\x00"+a.ResourceKey] = a.SubjectID
	}
	defaults := make(map[string]string, len(accounts))
	for _, acct := range accounts {
		if acct.DefaultSubjectID != "" {
			defaults[acct.ID] = acct.DefaultSubjectID
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append([]Account(nil), accounts...)
	r.assignments = byKey
	r.defaults = defaults
}

// Accounts implements Registry.
func (r *StaticRegistry) Accounts(ctx context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Account(nil), r.accounts...), nil
}

// SubjectFor implements Registry.
func (r *StaticRegistry) SubjectFor(ctx context.Context, accountID, resourceKey string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if subject, ok := r.assignments[accountID+"\x00"+resourceKey]; ok {
		return subject, nil
	}
	if subject, ok := r.defaults[accountID]; ok {
		return subject, nil
	}
	return "", &UnroutableError{AccountID: accountID, ResourceKey: resourceKey}
}
