// Package host describes what the surrounding orchestrator exposes to the
// statistics core: planned and provisioned nodes, the live node inventory
// and the set of configured clouds.
package host

import (
	"slices"
	"sync"
)

// PlannedNode is a worker node that has been requested from a cloud but is
// not provisioned yet. ID is the handle the provisioning engine uses to refer
// to it in later callbacks.
type PlannedNode struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Node is a provisioned worker node, identified by its computer name.
type Node struct {
	Name string `json:"name"`
}

// Inventory lists the nodes currently known to the host.
type Inventory interface {
	LiveNodes() []string
}

// CloudLister lists the clouds configured in the host.
type CloudLister interface {
	Clouds() []string
}

// InventoryStore is an Inventory whose contents are replaced by the host
// reporting its nodes, e.g. over HTTP.
type InventoryStore struct {
	mu    sync.RWMutex
	nodes []string
}

// NewInventoryStore creates an empty inventory.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{}
}

// Set replaces the live node list.
func (s *InventoryStore) Set(nodes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = slices.Clone(nodes)
}

// LiveNodes returns a copy of the last reported node list.
func (s *InventoryStore) LiveNodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.nodes)
}

// StaticClouds is a fixed CloudLister.
type StaticClouds []string

// Clouds implements CloudLister.
func (c StaticClouds) Clouds() []string {
	return slices.Clone(c)
}
