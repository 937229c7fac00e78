// Package codec validates and parses national identifier numbers.
//
// Each identifier scheme is a Codec; the Registry maps scheme names to
// implementations so handlers can stay scheme-agnostic.
package codec

import (
	"fmt"
	"sync"
	"time"
)

// Scheme names an identifier format.
type Scheme string

const SchemeEgyptian Scheme = "egyptian"

// Gender values produced by extraction.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Record is the structured result of a successful extraction.
type Record struct {
	NationalID  string `json:"national_id"`
	DateOfBirth string `json:"date_of_birth"`
	Governorate string `json:"governorate"`
	Gender      string `json:"gender"`
}

// Codec validates and extracts one identifier scheme. Implementations must
// be safe for concurrent use and must never panic on arbitrary input.
type Codec interface {
	Scheme() Scheme
	Validate(raw string) error
	Extract(raw string) (*Record, error)
}

// Clock supplies "today" for future-date checks.
type Clock func() time.Time

// Registry holds the codecs available to the API.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Scheme]Codec
}

func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[Scheme]Codec, len(codecs))}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the codec for its scheme.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Scheme()] = c
}

func (r *Registry) Get(s Scheme) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[s]
	if !ok {
		return nil, fmt.Errorf("no codec registered for scheme %q", s)
	}
	return c, nil
}
