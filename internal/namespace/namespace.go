// Package namespace derives collision-free tool/resource/prompt namespaces
// for unified (multi-server) sessions and resolves a namespaced name back
// to its owning server on dispatch.
package namespace

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultSeparator joins a namespace and a bare name ("github.list_issues").
// Configurable per spec.md's Open Question Decision, default ".".
const DefaultSeparator = "."

var invalidChars = regexp.MustCompile(`[^a-z0-9_]`)

// Derive lowercases name, replaces each character outside [a-z0-9_] with
// "_" (a run of n such characters becomes n underscores), and returns the
// sanitized namespace.
func Derive(name string) string {
	lower := strings.ToLower(name)
	return invalidChars.ReplaceAllString(lower, "_")
}

// Registry assigns a collision-free namespace per server name within one
// unified session: a server whose derived namespace was already taken
// gets a 2-character disambiguator suffix ("_02", "_03", ...).
type Registry struct {
	separator string

	mu         sync.Mutex
	byServer   map[string]string // serverID -> assigned namespace
	taken      map[string]bool   // assigned namespace -> true
}

// NewRegistry builds an empty Registry using separator to join namespace
// and name (DefaultSeparator if empty).
func NewRegistry(separator string) *Registry {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Registry{
		separator: separator,
		byServer:  make(map[string]string),
		taken:     make(map[string]bool),
	}
}

// Assign derives and reserves a namespace for serverID/serverName,
// returning the same namespace on repeated calls for the same serverID.
func (r *Registry) Assign(serverID, serverName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ns, ok := r.byServer[serverID]; ok {
		return ns
	}

	base := Derive(serverName)
	ns := base
	for n := 2; r.taken[ns]; n++ {
		ns = fmt.Sprintf("%s_%02d", base, n)
	}

	r.taken[ns] = true
	r.byServer[serverID] = ns
	return ns
}

// Qualify joins a server's assigned namespace with a bare tool/resource/
// prompt name.
func (r *Registry) Qualify(serverID, name string) string {
	r.mu.Lock()
	ns := r.byServer[serverID]
	r.mu.Unlock()
	return ns + r.separator + name
}

// Resolve splits a namespaced name on the first occurrence of the
// registry's separator, returning (namespace, bareName). If the separator
// is absent, namespace is "" and bareName is the input unchanged —
// callers treat that as "no server could own this name".
func (r *Registry) Resolve(qualified string) (namespace string, bareName string) {
	idx := strings.Index(qualified, r.separator)
	if idx < 0 {
		return "", qualified
	}
	return qualified[:idx], qualified[idx+len(r.separator):]
}

// ServerIDForNamespace returns the server id assigned to namespace, or ""
// if no server currently holds it.
func (r *Registry) ServerIDForNamespace(ns string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for serverID, assigned := range r.byServer {
		if assigned == ns {
			return serverID
		}
	}
	return ""
}
