package registry

import (
	"fmt"
	"strings"
	"sync"
)

// Activity is a capacity-bounded group participants enroll in.
// Name, description, schedule and capacity never change after construction.
type Activity struct {
	name            string
	description     string
	schedule        string
	maxParticipants int

	mu           sync.Mutex
	participants []string
	index        map[string]struct{}
}

// ActivityView is a read-only snapshot of an activity.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// NewActivity validates the definition and returns an activity seeded with the given participants.
func NewActivity(name, description, schedule string, maxParticipants int, participants ...string) (*Activity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("activity name is required")
	}
	if maxParticipants <= 0 {
		return nil, fmt.Errorf("activity %q: max participants must be positive, got %d", name, maxParticipants)
	}
	if len(participants) > maxParticipants {
		return nil, fmt.Errorf("activity %q: %d seed participants exceed capacity %d", name, len(participants), maxParticipants)
	}

	activity := &Activity{
		name:            name,
		description:     description,
		schedule:        schedule,
		maxParticipants: maxParticipants,
		participants:    make([]string, 0, len(participants)),
		index:           make(map[string]struct{}, len(participants)),
	}

	for _, email := range participants {
		if email == "" {
			return nil, fmt.Errorf("activity %q: empty seed participant", name)
		}
		if _, exists := activity.index[email]; exists {
			return nil, fmt.Errorf("activity %q: duplicate seed participant %q", name, email)
		}
		activity.participants = append(activity.participants, email)
		activity.index[email] = struct{}{}
	}

	return activity, nil
}

// Name returns the activity key.
func (a *Activity) Name() string { return a.name }

// MaxParticipants returns the capacity fixed at creation.
func (a *Activity) MaxParticipants() int { return a.maxParticipants }

func (a *Activity) view() ActivityView {
	a.mu.Lock()
	defer a.mu.Unlock()

	participants := make([]string, len(a.participants))
	copy(participants, a.participants)

	return ActivityView{
		Description:     a.description,
		Schedule:        a.schedule,
		MaxParticipants: a.maxParticipants,
		Participants:    participants,
	}
}

// add must be called with mu held.
func (a *Activity) add(email string) error {
	if _, exists := a.index[email]; exists {
		return newError(KindAlreadyEnrolled, a.name, email)
	}
	if len(a.participants) >= a.maxParticipants {
		return newError(KindFull, a.name, email)
	}

	a.participants = append(a.participants, email)
	a.index[email] = struct{}{}
	return nil
}

// remove must be called with mu held.
func (a *Activity) remove(email string) error {
	if _, exists := a.index[email]; !exists {
		return newError(KindNotEnrolled, a.name, email)
	}

	for i, participant := range a.participants {
		if participant == email {
			a.participants = append(a.participants[:i], a.participants[i+1:]...)
			break
		}
	}
	delete(a.index, email)
	return nil
}
