package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fleetforge/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToInt64Ptr converts sql.NullInt64 to *int64
func nullToInt64Ptr(ni sql.NullInt64) *int64 {
	if ni.Valid {
		v := ni.Int64
		return &v
	}
	return nil
}

// int64PtrToNull converts *int64 to sql.NullInt64
func int64PtrToNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullToIntPtr converts sql.NullInt64 to *int
func nullToIntPtr(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

// intPtrToNull converts *int to sql.NullInt64
func intPtrToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// boolToInt maps a bool onto SQLite's integer booleans
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals v to nullable JSON string.
// Returns empty NullString for nil or empty maps.
func marshalToNull(v any) (sql.NullString, error) {
	switch m := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case map[string]any:
		if len(m) == 0 {
			return sql.NullString{}, nil
		}
	case domain.Meta:
		if len(m) == 0 {
			return sql.NullString{}, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// placeholders returns "?, ?, ..." for n bind arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args converts ids to bind arguments
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the nodes table:
// 1. Add field to nodeRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update nodeColumns constant - APPEND to end
// 4. Update toDomain() to map new field to domain.Node
// 5. Update nodeInsertArgs() if column should be writable
// 6. Add migration in sqlite.go migrate() using addColumnIfNotExists()
// 7. Update relevant tests
//
// CRITICAL: Column order must match between:
// - nodeColumns constant
// - scanArgs() return slice
// - All SELECT queries using nodeColumns
//
// Same pattern applies to the other row scanners.

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID              int64
	Name            sql.NullString
	MAC             string
	Status          string
	Online          int64
	ClusterID       sql.NullInt64
	MetaJSON        sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TopologyVersion int64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly:
// id, name, mac, status, online, cluster_id, meta, created_at, updated_at, topology_version
func (r *nodeRow) scanArgs() []any {
	return []any{
		&r.ID,              // 1
		&r.Name,            // 2
		&r.MAC,             // 3
		&r.Status,          // 4
		&r.Online,          // 5
		&r.ClusterID,       // 6
		&r.MetaJSON,        // 7
		&r.CreatedAt,       // 8
		&r.UpdatedAt,       // 9
		&r.TopologyVersion, // 10
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() (*domain.Node, error) {
	node := &domain.Node{
		ID:              r.ID,
		Name:            nullToString(r.Name),
		MAC:             r.MAC,
		Status:          domain.NodeStatus(r.Status),
		Online:          r.Online != 0,
		ClusterID:       nullToInt64Ptr(r.ClusterID),
		TopologyVersion: r.TopologyVersion,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	if err := unmarshalJSONField(r.MetaJSON, &node.Meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	if node.Meta == nil {
		node.Meta = make(domain.Meta)
	}

	return node, nil
}

// nodeColumns returns the SELECT column list for node queries
const nodeColumns = `id, name, mac, status, online, cluster_id, meta,
	created_at, updated_at, topology_version`

// nodeInsertArgs prepares arguments for node INSERT
// Returns: name, mac, status, online, cluster_id, meta, created_at, updated_at
func nodeInsertArgs(node *domain.Node) ([]any, error) {
	metaJSON, err := marshalToNull(node.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}

	return []any{
		stringToNull(node.Name),
		node.MAC,
		string(node.Status),
		boolToInt(node.Online),
		int64PtrToNull(node.ClusterID),
		metaJSON,
		node.CreatedAt,
		node.UpdatedAt,
	}, nil
}

// ============================================================================
// Interface Row Scanner
// ============================================================================

// nicRow holds all columns from an interface query for scanning
type nicRow struct {
	ID           int64
	NodeID       int64
	Name         string
	MAC          string
	CurrentSpeed sql.NullInt64
	MaxSpeed     sql.NullInt64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nicColumns order exactly:
// id, node_id, name, mac, current_speed, max_speed
func (r *nicRow) scanArgs() []any {
	return []any{
		&r.ID,           // 1
		&r.NodeID,       // 2
		&r.Name,         // 3
		&r.MAC,          // 4
		&r.CurrentSpeed, // 5
		&r.MaxSpeed,     // 6
	}
}

// toDomain converts the scanned row to a domain.NIC with an empty assignment set
func (r *nicRow) toDomain() domain.NIC {
	return domain.NIC{
		ID:               r.ID,
		NodeID:           r.NodeID,
		Name:             r.Name,
		MAC:              r.MAC,
		CurrentSpeed:     nullToIntPtr(r.CurrentSpeed),
		MaxSpeed:         nullToIntPtr(r.MaxSpeed),
		AssignedNetworks: []int64{},
	}
}

// nicColumns returns the SELECT column list for interface queries
const nicColumns = `id, node_id, name, mac, current_speed, max_speed`

// ============================================================================
// Cluster Row Scanner
// ============================================================================

// clusterRow holds all columns from a cluster query for scanning
type clusterRow struct {
	ID         int64
	Name       string
	ReleaseID  sql.NullInt64
	Mode       sql.NullString
	NetManager sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match clusterColumns order exactly:
// id, name, release_id, mode, net_manager, created_at, updated_at
func (r *clusterRow) scanArgs() []any {
	return []any{
		&r.ID,         // 1
		&r.Name,       // 2
		&r.ReleaseID,  // 3
		&r.Mode,       // 4
		&r.NetManager, // 5
		&r.CreatedAt,  // 6
		&r.UpdatedAt,  // 7
	}
}

// toDomain converts the scanned row to a domain.Cluster
func (r *clusterRow) toDomain() *domain.Cluster {
	return &domain.Cluster{
		ID:         r.ID,
		Name:       r.Name,
		ReleaseID:  nullToInt64Ptr(r.ReleaseID),
		Mode:       nullToString(r.Mode),
		NetManager: nullToString(r.NetManager),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// clusterColumns returns the SELECT column list for cluster queries
const clusterColumns = `id, name, release_id, mode, net_manager, created_at, updated_at`

// ============================================================================
// Network Group Row Scanner
// ============================================================================

// networkGroupRow holds all columns from a network group query for scanning
type networkGroupRow struct {
	ID        int64
	Name      string
	ClusterID int64
	VlanStart sql.NullInt64
	CIDR      sql.NullString
	Gateway   sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match networkGroupColumns order exactly:
// id, name, cluster_id, vlan_start, cidr, gateway
func (r *networkGroupRow) scanArgs() []any {
	return []any{
		&r.ID,        // 1
		&r.Name,      // 2
		&r.ClusterID, // 3
		&r.VlanStart, // 4
		&r.CIDR,      // 5
		&r.Gateway,   // 6
	}
}

// toDomain converts the scanned row to a domain.NetworkGroup
func (r *networkGroupRow) toDomain() *domain.NetworkGroup {
	return &domain.NetworkGroup{
		ID:        r.ID,
		Name:      r.Name,
		ClusterID: r.ClusterID,
		VlanStart: nullToIntPtr(r.VlanStart),
		CIDR:      nullToString(r.CIDR),
		Gateway:   nullToString(r.Gateway),
	}
}

// networkGroupColumns returns the SELECT column list for network group queries
const networkGroupColumns = `id, name, cluster_id, vlan_start, cidr, gateway`

// ============================================================================
// Release Row Scanner
// ============================================================================

// releaseRow holds all columns from a release query for scanning
type releaseRow struct {
	ID          int64
	Name        string
	Version     string
	Description sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match releaseColumns order exactly:
// id, name, version, description
func (r *releaseRow) scanArgs() []any {
	return []any{
		&r.ID,          // 1
		&r.Name,        // 2
		&r.Version,     // 3
		&r.Description, // 4
	}
}

// toDomain converts the scanned row to a domain.Release
func (r *releaseRow) toDomain() *domain.Release {
	return &domain.Release{
		ID:          r.ID,
		Name:        r.Name,
		Version:     r.Version,
		Description: nullToString(r.Description),
	}
}

// releaseColumns returns the SELECT column list for release queries
const releaseColumns = `id, name, version, description`

// ============================================================================
// Notification Row Scanner
// ============================================================================

// notificationRow holds all columns from a notification query for scanning
type notificationRow struct {
	ID        int64
	Topic     string
	Message   string
	Status    string
	NodeID    sql.NullInt64
	ClusterID sql.NullInt64
	CreatedAt time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match notificationColumns order exactly:
// id, topic, message, status, node_id, cluster_id, created_at
func (r *notificationRow) scanArgs() []any {
	return []any{
		&r.ID,        // 1
		&r.Topic,     // 2
		&r.Message,   // 3
		&r.Status,    // 4
		&r.NodeID,    // 5
		&r.ClusterID, // 6
		&r.CreatedAt, // 7
	}
}

// toDomain converts the scanned row to a domain.Notification
func (r *notificationRow) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:        r.ID,
		Topic:     domain.NotificationTopic(r.Topic),
		Message:   r.Message,
		Status:    domain.NotificationStatus(r.Status),
		NodeID:    nullToInt64Ptr(r.NodeID),
		ClusterID: nullToInt64Ptr(r.ClusterID),
		CreatedAt: r.CreatedAt,
	}
}

// notificationColumns returns the SELECT column list for notification queries
const notificationColumns = `id, topic, message, status, node_id, cluster_id, created_at`
