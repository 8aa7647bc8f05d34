package environment

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	assignmentSeparatorConstant       = "="
	invalidAssignmentTemplateConstant = "environment: invalid assignment %q: expected KEY=VALUE"
)

// InvalidAssignmentError reports a KEY=VALUE assignment that could not be parsed.
type InvalidAssignmentError struct {
	Assignment string
}

// Error describes the malformed assignment.
func (assignmentError InvalidAssignmentError) Error() string {
	return fmt.Sprintf(invalidAssignmentTemplateConstant, assignmentError.Assignment)
}

// LookupFunction resolves a variable name to its value.
type LookupFunction func(name string) (string, bool)

// ExpandVariables replaces $NAME and ${NAME} references in value. Unknown names expand to an empty string.
func ExpandVariables(value string, lookup LookupFunction) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return os.Expand(value, func(name string) string {
		resolvedValue, _ := lookup(name)
		return resolvedValue
	})
}

// ParseAssignments converts KEY=VALUE strings into a map. Later assignments win.
func ParseAssignments(assignments []string) (map[string]string, error) {
	parsedValues := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		separatorIndex := strings.Index(assignment, assignmentSeparatorConstant)
		if separatorIndex <= 0 {
			return nil, InvalidAssignmentError{Assignment: assignment}
		}
		variableName := strings.TrimSpace(assignment[:separatorIndex])
		if len(variableName) == 0 {
			return nil, InvalidAssignmentError{Assignment: assignment}
		}
		parsedValues[variableName] = assignment[separatorIndex+1:]
	}
	return parsedValues, nil
}

// Store holds session environment values layered over a set of defaults.
type Store struct {
	mutex    sync.RWMutex
	defaults map[string]string
	values   map[string]string
}

// NewStore constructs a store seeded with defaults.
func NewStore(defaults map[string]string) *Store {
	store := &Store{defaults: copyValues(defaults)}
	store.values = copyValues(store.defaults)
	return store
}

// Set stores a value for name.
func (store *Store) Set(name string, value string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[name] = value
}

// SetAll stores every value in values.
func (store *Store) SetAll(values map[string]string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for name, value := range values {
		store.values[name] = value
	}
}

// Lookup returns the stored value for name.
func (store *Store) Lookup(name string) (string, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	value, found := store.values[name]
	return value, found
}

// Names returns the stored variable names in sorted order.
func (store *Store) Names() []string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	names := make([]string, 0, len(store.values))
	for name := range store.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the stored values suitable for an execution request.
func (store *Store) Snapshot() map[string]string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return copyValues(store.values)
}

// Reset discards session values and restores the defaults.
func (store *Store) Reset() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values = copyValues(store.defaults)
}

// Expand substitutes variables from the store, falling back to the process environment.
func (store *Store) Expand(value string) string {
	return ExpandVariables(value, func(name string) (string, bool) {
		if storedValue, found := store.Lookup(name); found {
			return storedValue, true
		}
		return os.LookupEnv(name)
	})
}

func copyValues(source map[string]string) map[string]string {
	duplicated := make(map[string]string, len(source))
	for name, value := range source {
		duplicated[name] = value
	}
	return duplicated
}
