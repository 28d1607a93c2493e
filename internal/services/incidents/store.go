package incidents

import (
	"fmt"
	"strconv"
	"sync"

	"incident-worker-go/internal/models"
)

// Store is the append-only, in-memory incident collection.
//
// Id allocation is serialized by seqMu so that the artifacts of an incident can be
// written under its final id before the record becomes visible. Readers only take
// mu and never wait on artifact IO.
type Store struct {
	seqMu  sync.Mutex
	nextID int

	mu        sync.RWMutex
	incidents []models.Incident
	index     map[string]int
}

func NewStore() *Store {
	return &Store{
		nextID: 1,
		index:  make(map[string]int),
	}
}

// Append stores inc under the next id and returns the stored copy.
func (s *Store) Append(inc models.Incident) models.Incident {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	inc.ID = strconv.Itoa(s.nextID)
	s.publish(inc)
	return inc.Clone()
}

// Create reserves the next id and hands it to build. The incident returned by build is
// appended only if build succeeds; on error nothing is stored and the id is reused by
// the next incident.
func (s *Store) Create(build func(id string) (models.Incident, error)) (models.Incident, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	id := strconv.Itoa(s.nextID)
	inc, err := build(id)
	if err != nil {
		return models.Incident{}, err
	}
	if inc.ID != id {
		return models.Incident{}, fmt.Errorf("incident built with id %q, reserved %q", inc.ID, id)
	}
	s.publish(inc)
	return inc.Clone(), nil
}

// publish must be called with seqMu held.
func (s *Store) publish(inc models.Incident) {
	stored := inc.Clone()

	s.mu.Lock()
	s.index[stored.ID] = len(s.incidents)
	s.incidents = append(s.incidents, stored)
	s.mu.Unlock()

	s.nextID++
}

// List returns all incidents in creation order.
func (s *Store) List() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Incident, len(s.incidents))
	for i, inc := range s.incidents {
		out[i] = inc.Clone()
	}
	return out
}

// Get returns the incident with the given id.
func (s *Store) Get(id string) (models.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Incident{}, false
	}
	return s.incidents[i].Clone(), true
}

// Len returns the number of stored incidents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}
