// Package domain defines the core domain types for the Fleetforge deployment backend.
//
// This package contains the entities and value objects shared by the storage,
// topology, service, and HTTP layers.
//
// # Core Types
//
// Node represents a physical machine that has reported its hardware to the
// backend. A node owns a set of NIC records and may belong to a Cluster.
//
// NIC represents a discovered network interface, identified system-wide by its
// MAC address. Each NIC carries the ids of the network groups currently
// assigned to it.
//
// NetworkGroup represents one logical network of a cluster. The network groups
// of a node's cluster form that node's allowed-network set.
//
// AssignmentEdge binds one NIC to one NetworkGroup.
//
// # Probe Records
//
// ProbeInterface and ProbeInterfaces are the structured form of the interface
// list reported by a hardware probe. Decoding is lenient per entry and strict
// about the overall shape.
//
// # Supporting Resources
//
// Release, Cluster, and Notification back the CRUD surfaces of the API.
//
// # Design Principles
//
// - No database or external dependencies
// - Typed string enumerations for statuses and topics
// - Validation of field values lives next to the type it guards
package domain
