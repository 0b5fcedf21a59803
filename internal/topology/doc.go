// Package topology reconciles discovered network interfaces with the
// logical networks they carry.
//
// Discovery turns a probe report into canonical NIC records, deduplicated by
// MAC within one report. The validator decides whether a proposed mapping of
// interfaces to network groups stays inside each node's allowed-network set.
// The Reconciler applies a legal mapping by replacing the assignment edges of
// every targeted interface inside a single store transaction.
//
// Every operation receives its store handle explicitly. The validator never
// writes; the Reconciler writes only assignment edges and the node topology
// version it uses to serialize concurrent reconciliations of the same node.
package topology
