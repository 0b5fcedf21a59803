// Package repository defines the data access interfaces for FleetForge.
//
// The actual implementation is in the sqlite subpackage, which also provides
// the transactional store the topology reconciler runs against.
//
// # Repository Interface
//
// Queries lists every read and write used by the services: nodes and their
// interfaces, clusters with their attributes and network groups, releases and
// notifications. Repository adds WithTx for multi-statement writes.
//
// # SQLite Implementation
//
// The sqlite implementation runs SQLite in WAL mode with foreign keys on.
// Interfaces and assignment edges cascade with their node, network groups
// cascade with their cluster, and deleting a cluster detaches its nodes.
//
// # Schema Migration
//
// The sqlite repository migrates the schema on startup, adding new columns
// as needed while preserving existing data.
package repository
