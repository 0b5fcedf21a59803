// Package service implements the business logic of the fleet API.
//
// Services sit between the HTTP handlers and the repository. They validate
// requests, run multi-step changes inside one repository transaction, and
// publish events once a change has committed.
//
// # Services
//
// NodeService registers nodes reported by bootstrap agents, applies partial
// and collection updates, and exposes the network topology operations of
// topology.Reconciler: interface discovery, assignment validation, and
// assignment apply.
//
// ClusterService manages clusters, their attributes and network groups, and
// imports or exports release and cluster fixtures.
//
// ReleaseService and NotificationService back the release and notification
// endpoints.
//
// # Errors
//
// Request failures are returned as *Error, which unwraps to a
// containerd/errdefs class. Topology failures keep their topology error
// types, which unwrap to the same classes. Storage failures are returned
// wrapped and unclassified.
//
// # Event System
//
// All services publish events via EventBus. The server relays them to
// connected clients over Server-Sent Events.
package service
