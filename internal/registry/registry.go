// Package registry holds the activity catalog and enforces enrollment rules.
//
// Every activity guards its participant set with its own mutex, so enroll and
// withdraw on one activity serialize while different activities proceed in
// parallel. The name lookup table is built once and never mutated.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation names the mutation a confirmation refers to.
type Operation string

const (
	OperationEnroll   Operation = "enroll"
	OperationWithdraw Operation = "withdraw"
)

// Confirmation acknowledges a successful enroll or withdraw.
type Confirmation struct {
	Activity        string    `json:"activity"`
	Email           string    `json:"email"`
	Operation       Operation `json:"operation"`
	Participants    int       `json:"participants"`
	MaxParticipants int       `json:"max_participants"`
	Message         string    `json:"message"`
}

// Registry is the in-memory collection of activities and their participant sets.
type Registry struct {
	activities map[string]*Activity
	order      []string
}

// New builds a registry from the given activities. Names must be unique.
func New(activities ...*Activity) (*Registry, error) {
	r := &Registry{
		activities: make(map[string]*Activity, len(activities)),
		order:      make([]string, 0, len(activities)),
	}

	for _, activity := range activities {
		if activity == nil {
			return nil, fmt.Errorf("nil activity")
		}
		if _, exists := r.activities[activity.name]; exists {
			return nil, fmt.Errorf("duplicate activity %q", activity.name)
		}
		r.activities[activity.name] = activity
		r.order = append(r.order, activity.name)
	}

	return r, nil
}

// Names returns activity names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List returns a snapshot of every activity keyed by name.
func (r *Registry) List() map[string]ActivityView {
	views := make(map[string]ActivityView, len(r.activities))
	for name, activity := range r.activities {
		views[name] = activity.view()
	}
	return views
}

// Catalog is a List snapshot that keeps catalog order when encoded as JSON.
type Catalog struct {
	Names      []string
	Activities map[string]ActivityView
}

// MarshalJSON encodes the catalog as a JSON object whose keys follow Names.
func (c Catalog) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range c.Names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c.Activities[name])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Catalog returns the List snapshot together with the catalog order.
func (r *Registry) Catalog() Catalog {
	return Catalog{Names: r.Names(), Activities: r.List()}
}

// Get returns a snapshot of a single activity.
func (r *Registry) Get(name string) (ActivityView, error) {
	activity, ok := r.activities[name]
	if !ok {
		return ActivityView{}, newError(KindNotFound, name, "")
	}
	return activity.view(), nil
}

// Enroll adds email to the activity's participants. The email is copied
// before it is stored, so callers may pass request-scoped strings.
func (r *Registry) Enroll(name, email string) (Confirmation, error) {
	activity, ok := r.activities[name]
	if !ok {
		return Confirmation{}, newError(KindNotFound, name, email)
	}
	if strings.TrimSpace(email) == "" {
		return Confirmation{}, ErrEmptyEmail
	}
	email = strings.Clone(email)
	name = activity.name

	activity.mu.Lock()
	defer activity.mu.Unlock()

	if err := activity.add(email); err != nil {
		return Confirmation{}, err
	}

	return Confirmation{
		Activity:        name,
		Email:           email,
		Operation:       OperationEnroll,
		Participants:    len(activity.participants),
		MaxParticipants: activity.maxParticipants,
		Message:         fmt.Sprintf("Signed up %s for %s", email, name),
	}, nil
}

// Withdraw removes email from the activity's participants.
func (r *Registry) Withdraw(name, email string) (Confirmation, error) {
	activity, ok := r.activities[name]
	if !ok {
		return Confirmation{}, newError(KindNotFound, name, email)
	}
	if strings.TrimSpace(email) == "" {
		return Confirmation{}, ErrEmptyEmail
	}
	email = strings.Clone(email)
	name = activity.name

	activity.mu.Lock()
	defer activity.mu.Unlock()

	if err := activity.remove(email); err != nil {
		return Confirmation{}, err
	}

	return Confirmation{
		Activity:        name,
		Email:           email,
		Operation:       OperationWithdraw,
		Participants:    len(activity.participants),
		MaxParticipants: activity.maxParticipants,
		Message:         fmt.Sprintf("Unregistered %s from %s", email, name),
	}, nil
}
