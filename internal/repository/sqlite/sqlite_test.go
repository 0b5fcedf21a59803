package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fleetforge/internal/domain"
	"fleetforge/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates a file-backed SQLite repository in a temp dir
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// assertNotNil fails the test if value is nil
func assertNotNil(t *testing.T, value interface{}) {
	t.Helper()
	if value == nil || reflect.ValueOf(value).IsNil() {
		t.Fatalf("expected non-nil value")
	}
}

// assertNil fails the test if value is not nil
func assertNil(t *testing.T, value interface{}) {
	t.Helper()
	if value != nil && !reflect.ValueOf(value).IsNil() {
		t.Fatalf("expected nil value, got %v", value)
	}
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullString
		expected string
	}{
		{
			name:     "valid string",
			input:    sql.NullString{String: "test", Valid: true},
			expected: "test",
		},
		{
			name:     "invalid string",
			input:    sql.NullString{String: "test", Valid: false},
			expected: "",
		},
		{
			name:     "empty valid string",
			input:    sql.NullString{String: "", Valid: true},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, tt.expected, nullToString(tt.input))
		})
	}
}

func TestStringToNull(t *testing.T) {
	assertEqual(t, sql.NullString{String: "test", Valid: true}, stringToNull("test"))
	assertEqual(t, sql.NullString{}, stringToNull(""))
}

func TestNullIntConversions(t *testing.T) {
	t.Run("int64 pointer", func(t *testing.T) {
		assertNil(t, nullToInt64Ptr(sql.NullInt64{}))
		assertEqual(t, int64(7), *nullToInt64Ptr(sql.NullInt64{Int64: 7, Valid: true}))
		assertEqual(t, sql.NullInt64{}, int64PtrToNull(nil))
		assertEqual(t, sql.NullInt64{Int64: 7, Valid: true}, int64PtrToNull(int64p(7)))
	})

	t.Run("int pointer", func(t *testing.T) {
		assertNil(t, nullToIntPtr(sql.NullInt64{}))
		assertEqual(t, 1000, *nullToIntPtr(sql.NullInt64{Int64: 1000, Valid: true}))
		assertEqual(t, sql.NullInt64{}, intPtrToNull(nil))
		assertEqual(t, sql.NullInt64{Int64: 0, Valid: true}, intPtrToNull(intp(0)))
	})
}

func TestMarshalToNull(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected sql.NullString
	}{
		{name: "nil", input: nil, expected: sql.NullString{}},
		{name: "empty map", input: map[string]any{}, expected: sql.NullString{}},
		{name: "empty meta", input: domain.Meta{}, expected: sql.NullString{}},
		{
			name:     "meta",
			input:    domain.Meta{"cpu": "x86_64"},
			expected: sql.NullString{String: `{"cpu":"x86_64"}`, Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := marshalToNull(tt.input)
			assertNoError(t, err)
			assertEqual(t, tt.expected, result)
		})
	}
}

func TestUnmarshalJSONField(t *testing.T) {
	var target map[string]any
	assertNoError(t, unmarshalJSONField(sql.NullString{}, &target))
	assertNil(t, target)

	assertNoError(t, unmarshalJSONField(sql.NullString{String: `{"a":1}`, Valid: true}, &target))
	assertEqual(t, float64(1), target["a"])

	if err := unmarshalJSONField(sql.NullString{String: `{`, Valid: true}, &target); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestPlaceholders(t *testing.T) {
	assertEqual(t, "", placeholders(0))
	assertEqual(t, "?", placeholders(1))
	assertEqual(t, "?, ?, ?", placeholders(3))
}

func TestNodeRowToDomain(t *testing.T) {
	now := time.Now().UTC()
	row := &nodeRow{
		ID:              3,
		Name:            sql.NullString{String: "node-3", Valid: true},
		MAC:             "aa:bb:cc:00:00:03",
		Status:          "ready",
		Online:          1,
		ClusterID:       sql.NullInt64{Int64: 2, Valid: true},
		MetaJSON:        sql.NullString{String: `{"cpu":"x86_64"}`, Valid: true},
		CreatedAt:       now,
		UpdatedAt:       now,
		TopologyVersion: 4,
	}

	node, err := row.toDomain()
	assertNoError(t, err)
	assertEqual(t, int64(3), node.ID)
	assertEqual(t, "node-3", node.Name)
	assertEqual(t, domain.NodeStatusReady, node.Status)
	assertEqual(t, true, node.Online)
	assertEqual(t, int64(2), *node.ClusterID)
	assertEqual(t, "x86_64", node.Meta.GetString("cpu"))
	assertEqual(t, int64(4), node.TopologyVersion)

	t.Run("null meta yields empty map", func(t *testing.T) {
		row.MetaJSON = sql.NullString{}
		node, err := row.toDomain()
		assertNoError(t, err)
		assertNotNil(t, node.Meta)
		assertEqual(t, 0, len(node.Meta))
	})

	t.Run("invalid meta fails", func(t *testing.T) {
		row.MetaJSON = sql.NullString{String: "[", Valid: true}
		if _, err := row.toDomain(); err == nil {
			t.Fatal("expected error for invalid meta")
		}
	})
}

// ============================================================================
// Schema Tests
// ============================================================================

func TestMigrateIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	repo, err := New(path)
	assertNoError(t, err)
	assertNoError(t, repo.CreateNode(context.Background(), domain.NewNode("aa:bb:cc:00:00:01", "n1")))
	repo.Close()

	repo, err = New(path)
	assertNoError(t, err)
	defer repo.Close()

	nodes, err := repo.ListNodes(context.Background(), nil)
	assertNoError(t, err)
	assertEqual(t, 1, len(nodes))
}

func TestDSN(t *testing.T) {
	got := dsn("/var/lib/fleetforge/fleet.db")
	assertEqual(t, "file:/var/lib/fleetforge/fleet.db?_pragma=foreign_keys%281%29&_pragma=busy_timeout%285000%29&_pragma=journal_mode%28WAL%29&_time_format=sqlite&_txlock=immediate", got)
}

// ============================================================================
// Node Tests
// ============================================================================

func TestCreateNode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := domain.NewNode("AA:BB:CC:00:00:01", "compute-1")
	node.Meta.Set("cpu", "x86_64")
	assertNoError(t, repo.CreateNode(ctx, node))
	if node.ID == 0 {
		t.Fatal("expected node ID to be set")
	}

	retrieved, err := repo.GetNode(ctx, node.ID)
	assertNoError(t, err)
	assertNotNil(t, retrieved)
	assertEqual(t, "aa:bb:cc:00:00:01", retrieved.MAC)
	assertEqual(t, "compute-1", retrieved.Name)
	assertEqual(t, domain.NodeStatusDiscover, retrieved.Status)
	assertEqual(t, "x86_64", retrieved.Meta.GetString("cpu"))
	assertEqual(t, 0, len(retrieved.Interfaces))

	t.Run("duplicate mac is rejected", func(t *testing.T) {
		if err := repo.CreateNode(ctx, domain.NewNode("aa:bb:cc:00:00:01", "other")); err == nil {
			t.Fatal("expected unique constraint error")
		}
	})
}

func TestGetNodeNotFound(t *testing.T) {
	repo := newTestRepo(t)

	node, err := repo.GetNode(context.Background(), 42)
	assertNoError(t, err)
	assertNil(t, node)

	node, err = repo.GetNodeByMAC(context.Background(), "aa:bb:cc:dd:ee:ff")
	assertNoError(t, err)
	assertNil(t, node)
}

func TestListNodesByCluster(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cluster := &domain.Cluster{Name: "prod"}
	assertNoError(t, repo.CreateCluster(ctx, cluster))

	inCluster := domain.NewNode("aa:bb:cc:00:00:01", "a")
	inCluster.ClusterID = &cluster.ID
	assertNoError(t, repo.CreateNode(ctx, inCluster))
	assertNoError(t, repo.CreateNode(ctx, domain.NewNode("aa:bb:cc:00:00:02", "b")))

	all, err := repo.ListNodes(ctx, nil)
	assertNoError(t, err)
	assertEqual(t, 2, len(all))

	scoped, err := repo.ListNodes(ctx, &cluster.ID)
	assertNoError(t, err)
	assertEqual(t, 1, len(scoped))
	assertEqual(t, inCluster.ID, scoped[0].ID)
}

func TestUpdateNode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	assertNoError(t, repo.CreateNode(ctx, node))

	node.Status = domain.NodeStatusReady
	node.Online = false
	node.Name = "renamed"
	assertNoError(t, repo.UpdateNode(ctx, node))

	retrieved, err := repo.GetNode(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, domain.NodeStatusReady, retrieved.Status)
	assertEqual(t, false, retrieved.Online)
	assertEqual(t, "renamed", retrieved.Name)
}

func TestInterfaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	assertNoError(t, repo.CreateNode(ctx, node))

	nic := &domain.NIC{NodeID: node.ID, Name: "eth0", MAC: "AA:BB:CC:00:00:11", MaxSpeed: intp(10000)}
	assertNoError(t, repo.CreateInterface(ctx, nic))

	found, err := repo.GetInterfaceByMAC(ctx, "aa:bb:cc:00:00:11")
	assertNoError(t, err)
	assertNotNil(t, found)
	assertEqual(t, node.ID, found.NodeID)
	assertEqual(t, 10000, *found.MaxSpeed)
	assertNil(t, found.CurrentSpeed)

	nic.Name = "ens1"
	nic.CurrentSpeed = intp(1000)
	assertNoError(t, repo.UpdateInterface(ctx, nic))

	retrieved, err := repo.GetNode(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, 1, len(retrieved.Interfaces))
	assertEqual(t, "ens1", retrieved.Interfaces[0].Name)
	assertEqual(t, 1000, *retrieved.Interfaces[0].CurrentSpeed)
	assertEqual(t, []int64{}, retrieved.Interfaces[0].AssignedNetworks)

	t.Run("mac is unique across nodes", func(t *testing.T) {
		other := domain.NewNode("aa:bb:cc:00:00:02", "n2")
		assertNoError(t, repo.CreateNode(ctx, other))
		err := repo.CreateInterface(ctx, &domain.NIC{NodeID: other.ID, Name: "eth0", MAC: "aa:bb:cc:00:00:11"})
		if err == nil {
			t.Fatal("expected unique constraint error")
		}
	})
}

// ============================================================================
// Topology Tests
// ============================================================================

func TestAssignmentsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cluster := &domain.Cluster{Name: "prod"}
	assertNoError(t, repo.CreateCluster(ctx, cluster))
	mgmt := &domain.NetworkGroup{Name: "management", ClusterID: cluster.ID, VlanStart: intp(101), CIDR: "10.0.0.0/24"}
	assertNoError(t, repo.CreateNetworkGroup(ctx, mgmt))
	storage := &domain.NetworkGroup{Name: "storage", ClusterID: cluster.ID}
	assertNoError(t, repo.CreateNetworkGroup(ctx, storage))

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	node.ClusterID = &cluster.ID
	assertNoError(t, repo.CreateNode(ctx, node))
	nic := &domain.NIC{NodeID: node.ID, Name: "eth0", MAC: "aa:bb:cc:00:00:11"}
	assertNoError(t, repo.CreateInterface(ctx, nic))

	allowed, err := repo.AllowedNetworks(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, []int64{mgmt.ID, storage.ID}, allowed)

	tx, err := repo.Begin(ctx)
	assertNoError(t, err)
	assertNoError(t, tx.LockNodes(ctx, []int64{node.ID}))
	assertNoError(t, tx.InsertAssignments(ctx, []domain.AssignmentEdge{
		{InterfaceID: nic.ID, NetworkID: storage.ID},
		{InterfaceID: nic.ID, NetworkID: mgmt.ID},
	}))
	assertNoError(t, tx.Commit())
	assertNoError(t, tx.Rollback())

	nics, err := repo.ListInterfaces(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, []int64{mgmt.ID, storage.ID}, nics[0].AssignedNetworks)

	reloaded, err := repo.GetNode(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, int64(1), reloaded.TopologyVersion)

	t.Run("delete by interface", func(t *testing.T) {
		tx, err := repo.Begin(ctx)
		assertNoError(t, err)
		assertNoError(t, tx.DeleteAssignments(ctx, []int64{nic.ID}))
		assertNoError(t, tx.Commit())

		nics, err := repo.ListInterfaces(ctx, node.ID)
		assertNoError(t, err)
		assertEqual(t, []int64{}, nics[0].AssignedNetworks)
	})

	t.Run("node without cluster has no allowed networks", func(t *testing.T) {
		loose := domain.NewNode("aa:bb:cc:00:00:02", "n2")
		assertNoError(t, repo.CreateNode(ctx, loose))
		allowed, err := repo.AllowedNetworks(ctx, loose.ID)
		assertNoError(t, err)
		assertEqual(t, 0, len(allowed))
	})
}

func TestReadTxAlongsideWriter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	assertNoError(t, repo.CreateNode(ctx, node))

	writer, err := repo.Begin(ctx)
	assertNoError(t, err)
	defer writer.Rollback()
	assertNoError(t, writer.LockNodes(ctx, []int64{node.ID}))

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	reader, err := repo.BeginReadTx(readCtx)
	assertNoError(t, err)
	defer reader.Rollback()

	snapshot, err := reader.GetNode(readCtx, node.ID)
	assertNoError(t, err)
	assertEqual(t, int64(0), snapshot.TopologyVersion)
	assertNoError(t, reader.Rollback())

	assertNoError(t, writer.Commit())
	reloaded, err := repo.GetNode(ctx, node.ID)
	assertNoError(t, err)
	assertEqual(t, int64(1), reloaded.TopologyVersion)
}

func TestCascadeDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cluster := &domain.Cluster{Name: "prod"}
	assertNoError(t, repo.CreateCluster(ctx, cluster))
	group := &domain.NetworkGroup{Name: "management", ClusterID: cluster.ID}
	assertNoError(t, repo.CreateNetworkGroup(ctx, group))

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	node.ClusterID = &cluster.ID
	assertNoError(t, repo.CreateNode(ctx, node))
	nic := &domain.NIC{NodeID: node.ID, Name: "eth0", MAC: "aa:bb:cc:00:00:11"}
	assertNoError(t, repo.CreateInterface(ctx, nic))
	assertNoError(t, repo.InsertAssignments(ctx, []domain.AssignmentEdge{{InterfaceID: nic.ID, NetworkID: group.ID}}))
	assertNoError(t, repo.SaveClusterAttributes(ctx, &domain.ClusterAttributes{
		ClusterID: cluster.ID,
		Editable:  map[string]any{"debug": true},
	}))

	t.Run("cluster delete detaches nodes", func(t *testing.T) {
		assertNoError(t, repo.DeleteCluster(ctx, cluster.ID))

		reloaded, err := repo.GetNode(ctx, node.ID)
		assertNoError(t, err)
		assertNil(t, reloaded.ClusterID)
		assertEqual(t, []int64{}, reloaded.Interfaces[0].AssignedNetworks)

		g, err := repo.GetNetworkGroup(ctx, group.ID)
		assertNoError(t, err)
		assertNil(t, g)

		attrs, err := repo.GetClusterAttributes(ctx, cluster.ID)
		assertNoError(t, err)
		assertNil(t, attrs)
	})

	t.Run("node delete removes interfaces", func(t *testing.T) {
		assertNoError(t, repo.DeleteNode(ctx, node.ID))

		found, err := repo.GetInterfaceByMAC(ctx, nic.MAC)
		assertNoError(t, err)
		assertNil(t, found)
	})
}

// ============================================================================
// Cluster, Release and Notification Tests
// ============================================================================

func TestClusterCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	release := &domain.Release{Name: "openstack", Version: "2024.1"}
	assertNoError(t, repo.CreateRelease(ctx, release))

	cluster := &domain.Cluster{Name: "prod", ReleaseID: &release.ID, Mode: "multinode", NetManager: domain.NetManagerVlan}
	assertNoError(t, repo.CreateCluster(ctx, cluster))

	byName, err := repo.GetClusterByName(ctx, "prod")
	assertNoError(t, err)
	assertEqual(t, cluster.ID, byName.ID)
	assertEqual(t, release.ID, *byName.ReleaseID)
	assertEqual(t, domain.NetManagerVlan, byName.NetManager)

	cluster.Name = "production"
	cluster.ReleaseID = nil
	assertNoError(t, repo.UpdateCluster(ctx, cluster))

	reloaded, err := repo.GetCluster(ctx, cluster.ID)
	assertNoError(t, err)
	assertEqual(t, "production", reloaded.Name)
	assertNil(t, reloaded.ReleaseID)

	clusters, err := repo.ListClusters(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(clusters))

	t.Run("attributes upsert", func(t *testing.T) {
		attrs := &domain.ClusterAttributes{
			ClusterID: cluster.ID,
			Editable:  map[string]any{"syslog": "10.0.0.1"},
			Generated: map[string]any{"mysql_password": "secret"},
		}
		assertNoError(t, repo.SaveClusterAttributes(ctx, attrs))
		attrs.Editable = map[string]any{"syslog": "10.0.0.2"}
		assertNoError(t, repo.SaveClusterAttributes(ctx, attrs))

		got, err := repo.GetClusterAttributes(ctx, cluster.ID)
		assertNoError(t, err)
		assertEqual(t, "10.0.0.2", got.Editable["syslog"])
		assertEqual(t, "secret", got.Generated["mysql_password"])
	})
}

func TestReleaseCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	release := &domain.Release{Name: "openstack", Version: "2024.1", Description: "Caracal"}
	assertNoError(t, repo.CreateRelease(ctx, release))

	found, err := repo.GetReleaseByNameVersion(ctx, "openstack", "2024.1")
	assertNoError(t, err)
	assertEqual(t, release, found)

	if err := repo.CreateRelease(ctx, &domain.Release{Name: "openstack", Version: "2024.1"}); err == nil {
		t.Fatal("expected unique constraint error")
	}

	release.Description = ""
	assertNoError(t, repo.UpdateRelease(ctx, release))
	reloaded, err := repo.GetRelease(ctx, release.ID)
	assertNoError(t, err)
	assertEqual(t, "", reloaded.Description)

	t.Run("delete detaches clusters", func(t *testing.T) {
		cluster := &domain.Cluster{Name: "prod", ReleaseID: &release.ID}
		assertNoError(t, repo.CreateCluster(ctx, cluster))
		assertNoError(t, repo.DeleteRelease(ctx, release.ID))

		reloaded, err := repo.GetCluster(ctx, cluster.ID)
		assertNoError(t, err)
		assertNil(t, reloaded.ReleaseID)

		releases, err := repo.ListReleases(ctx)
		assertNoError(t, err)
		assertEqual(t, 0, len(releases))
	})
}

func TestNotifications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := domain.NewNode("aa:bb:cc:00:00:01", "n1")
	assertNoError(t, repo.CreateNode(ctx, node))

	first := domain.NewNotification(domain.TopicDiscover, "New node is discovered")
	first.NodeID = &node.ID
	assertNoError(t, repo.CreateNotification(ctx, first))
	second := domain.NewNotification(domain.TopicDone, "Deployment finished")
	assertNoError(t, repo.CreateNotification(ctx, second))

	all, err := repo.ListNotifications(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(all))
	assertEqual(t, second.ID, all[0].ID)

	assertNoError(t, repo.UpdateNotificationStatus(ctx, first.ID, domain.NotificationRead))
	got, err := repo.GetNotification(ctx, first.ID)
	assertNoError(t, err)
	assertEqual(t, domain.NotificationRead, got.Status)
	assertEqual(t, node.ID, *got.NodeID)

	missing, err := repo.GetNotification(ctx, 999)
	assertNoError(t, err)
	assertNil(t, missing)
}

// ============================================================================
// Transaction Tests
// ============================================================================

func TestWithTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("error rolls back", func(t *testing.T) {
		err := repo.WithTx(ctx, func(q repository.Queries) error {
			if err := q.CreateNode(ctx, domain.NewNode("aa:bb:cc:00:00:01", "n1")); err != nil {
				return err
			}
			return sql.ErrConnDone
		})
		if err != sql.ErrConnDone {
			t.Fatalf("expected fn error, got %v", err)
		}

		node, err := repo.GetNodeByMAC(ctx, "aa:bb:cc:00:00:01")
		assertNoError(t, err)
		assertNil(t, node)
	})

	t.Run("success commits", func(t *testing.T) {
		err := repo.WithTx(ctx, func(q repository.Queries) error {
			return q.CreateNode(ctx, domain.NewNode("aa:bb:cc:00:00:01", "n1"))
		})
		assertNoError(t, err)

		node, err := repo.GetNodeByMAC(ctx, "aa:bb:cc:00:00:01")
		assertNoError(t, err)
		assertNotNil(t, node)
	})
}
