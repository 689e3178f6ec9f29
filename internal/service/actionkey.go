package service

import (
	"sync"
)

// ActionKind enumerates the billing actions that are serialized per key.
type ActionKind uint8

const (
	ActionUpgrade ActionKind = iota + 1
	ActionChangePlan
	ActionCancel
	ActionResume
	ActionAddMethod
	ActionDeleteMethod
	ActionSetDefaultMethod
)

func (k ActionKind) String() string {
	switch k {
	case ActionUpgrade:
		return "upgrade"
	case ActionChangePlan:
		return "change"
	case ActionCancel:
		return "cancel"
	case ActionResume:
		return "resume"
	case ActionAddMethod:
		return "add-method"
	case ActionDeleteMethod:
		return "delete"
	case ActionSetDefaultMethod:
		return "default"
	default:
		return "unknown"
	}
}

// ActionKey identifies one serializable billing action. Target narrows the key
// to a plan or payment-method id, so e.g. change-pro and change-agency can be
// outstanding at the same time while a second change-pro is rejected.
type ActionKey struct {
	Kind   ActionKind
	Target string
}

func (k ActionKey) String() string {
	if k.Target == "" {
		return k.Kind.String()
	}
	return k.Kind.String() + "-" + k.Target
}

// inflightSet tracks which action keys have an outstanding request.
type inflightSet struct {
	mu   sync.Mutex
	keys map[ActionKey]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[ActionKey]struct{})}
}

// acquire marks the key busy and hands back a release func safe to call more
// than once. A key that is already busy returns ErrActionInFlight.
func (s *inflightSet) acquire(key ActionKey) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.keys[key]; busy {
		return nil, ErrActionInFlight
	}
	s.keys[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.keys, key)
			s.mu.Unlock()
		})
	}
	return release, nil
}

// busy reports whether the key currently has an outstanding request.
func (s *inflightSet) busy(key ActionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}
