// Package signup implements the signup journey a virtual user performs and
// the test data it submits.
package signup

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Profile is one synthetic user submitted through the signup form.
type Profile struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// DefaultProfiles returns the built-in user list.
func DefaultProfiles() []Profile {
	return []Profile{
		{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Password: "SecurePass123!", ConfirmPassword: "SecurePass123!"},
		{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Password: "TestPass456@", ConfirmPassword: "TestPass456@"},
		{FirstName: "Bob", LastName: "Johnson", Email: "bob.johnson@example.com", Password: "MyPassword789#", ConfirmPassword: "MyPassword789#"},
		{FirstName: "Alice", LastName: "Brown", Email: "alice.brown@example.com", Password: "StrongPass123$", ConfirmPassword: "StrongPass123$"},
		{FirstName: "Charlie", LastName: "Wilson", Email: "charlie.wilson@example.com", Password: "SecureKey456%", ConfirmPassword: "SecureKey456%"},
	}
}

// ErrEmptyPool is returned when a pool is built without profiles.
var ErrEmptyPool = errors.New("profile pool is empty")

// Pool hands out profiles uniformly at random. It is safe for concurrent use.
type Pool struct {
	profiles []Profile

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPool creates a pool over a copy of profiles. A zero seed uses the
// current time.
func NewPool(profiles []Profile, seed int64) (*Pool, error) {
	if len(profiles) == 0 {
		return nil, ErrEmptyPool
	}
	for i, p := range profiles {
		if p.Password != p.ConfirmPassword {
			return nil, fmt.Errorf("profile %d (%s): password and confirmPassword differ", i, p.Email)
		}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cp := make([]Profile, len(profiles))
	copy(cp, profiles)

	return &Pool{
		profiles: cp,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Pick returns a random profile.
func (p *Pool) Pick() Profile {
	p.mu.Lock()
	i := p.rng.Intn(len(p.profiles))
	p.mu.Unlock()
	return p.profiles[i]
}

// Len returns the number of profiles in the pool.
func (p *Pool) Len() int {
	return len(p.profiles)
}

// TokenSource produces millisecond timestamps that strictly increase across
// calls, so tokens stay distinct when several virtual users ask within the
// same millisecond.
type TokenSource struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewTokenSource creates a token source. A nil clock uses time.Now.
func NewTokenSource(now func() time.Time) *TokenSource {
	if now == nil {
		now = time.Now
	}
	return &TokenSource{now: now}
}

// Next returns the next token.
func (s *TokenSource) Next() int64 {
	ms := s.now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return ms
}

// UniqueEmail tags the local part of email with token:
// john.doe@example.com becomes john.doe+<token>@example.com.
func UniqueEmail(email string, token int64) string {
	tag := "+" + strconv.FormatInt(token, 10)
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email + tag
	}
	return email[:at] + tag + email[at:]
}
