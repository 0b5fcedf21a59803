package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetforge/internal/domain"
	"fleetforge/internal/repository/sqlite"
	"fleetforge/internal/topology"
)

type harness struct {
	ctx      context.Context
	repo     *sqlite.Repository
	events   chan Event
	nodes    *NodeService
	clusters *ClusterService
	releases *ReleaseService
	notes    *NotificationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	return &harness{
		ctx:      context.Background(),
		repo:     repo,
		events:   events,
		nodes:    NewNodeService(repo, topology.NewReconciler(repo), bus),
		clusters: NewClusterService(repo, bus),
		releases: NewReleaseService(repo, bus),
		notes:    NewNotificationService(repo, bus),
	}
}

// published drains the events seen so far
func (h *harness) published() []EventType {
	var types []EventType
	for {
		select {
		case e := <-h.events:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func (h *harness) register(t *testing.T, mac, meta string) *domain.Node {
	t.Helper()
	node, err := h.nodes.RegisterNode(h.ctx, RegisterRequest{MAC: mac, Meta: json.RawMessage(meta)})
	require.NoError(t, err)
	return node
}

func (h *harness) cluster(t *testing.T, name string, networks ...string) (*domain.Cluster, []int64) {
	t.Helper()
	c := &domain.Cluster{Name: name}
	require.NoError(t, h.clusters.CreateCluster(h.ctx, c))
	ids := make([]int64, 0, len(networks))
	for _, n := range networks {
		g := &domain.NetworkGroup{Name: n}
		require.NoError(t, h.clusters.CreateNetwork(h.ctx, c.ID, g))
		ids = append(ids, g.ID)
	}
	return c, ids
}

func ptr[T any](v T) *T { return &v }

const twoNICs = `{
	"cpu": {"total": 8},
	"interfaces": [
		{"name": "eth0", "mac": "AA:BB:CC:00:00:01", "current_speed": 1000},
		{"name": "eth1", "mac": "aa:bb:cc:00:00:02"},
		{"mac": "aa:bb:cc:00:00:03"}
	]
}`

func TestRegisterNode(t *testing.T) {
	h := newHarness(t)

	node := h.register(t, "AA:BB:CC:00:00:01", twoNICs)
	assert.NotZero(t, node.ID)
	assert.Equal(t, "aa:bb:cc:00:00:01", node.MAC)
	assert.Equal(t, domain.NodeStatusDiscover, node.Status)
	assert.NotContains(t, node.Meta, "interfaces")
	assert.Contains(t, node.Meta, "cpu")

	stored, err := h.nodes.GetNode(h.ctx, node.ID)
	require.NoError(t, err)
	require.Len(t, stored.Interfaces, 2, "entry without a name is dropped")
	assert.Equal(t, "eth0", stored.Interfaces[0].Name)
	require.NotNil(t, stored.Interfaces[0].CurrentSpeed)
	assert.Equal(t, 1000, *stored.Interfaces[0].CurrentSpeed)

	notes, err := h.notes.ListNotifications(h.ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.TopicDiscover, notes[0].Topic)
	assert.Equal(t, "New node is discovered", notes[0].Message)
	require.NotNil(t, notes[0].NodeID)
	assert.Equal(t, node.ID, *notes[0].NodeID)

	assert.Equal(t, []EventType{EventNodeCreated, EventNotificationCreated}, h.published())
}

func TestRegisterNodeWithoutMeta(t *testing.T) {
	h := newHarness(t)

	for i, raw := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		mac := fmt.Sprintf("aa:bb:cc:00:02:0%d", i)
		node, err := h.nodes.RegisterNode(h.ctx, RegisterRequest{MAC: mac, Meta: raw})
		require.NoError(t, err)
		assert.Empty(t, node.Meta)

		stored, err := h.nodes.GetNode(h.ctx, node.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Interfaces)
		assert.Equal(t, domain.NodeStatusDiscover, stored.Status)
	}

	notes, err := h.notes.ListNotifications(h.ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	_, err = h.nodes.RegisterNode(h.ctx, RegisterRequest{MAC: "aa:bb:cc:00:02:00"})
	assert.True(t, errdefs.IsAlreadyExists(err), "unexpected class for %v", err)
}

func TestRegisterNodeRejects(t *testing.T) {
	h := newHarness(t)
	h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	h.published()

	tests := []struct {
		name  string
		req   RegisterRequest
		class func(error) bool
	}{
		{"missing mac", RegisterRequest{Meta: json.RawMessage(`{"interfaces": []}`)}, errdefs.IsInvalidArgument},
		{"meta not an object", RegisterRequest{MAC: "aa:bb:cc:00:01:01", Meta: json.RawMessage(`[1]`)}, errdefs.IsInvalidArgument},
		{"meta without interfaces", RegisterRequest{MAC: "aa:bb:cc:00:01:01", Meta: json.RawMessage(`{"cpu": 1}`)}, errdefs.IsInvalidArgument},
		{"interfaces not a list", RegisterRequest{MAC: "aa:bb:cc:00:01:01", Meta: json.RawMessage(`{"interfaces": {}}`)}, errdefs.IsInvalidArgument},
		{"known node mac", RegisterRequest{MAC: "AA:BB:CC:00:00:01", Meta: json.RawMessage(`{"interfaces": []}`)}, errdefs.IsAlreadyExists},
		{"known interface mac", RegisterRequest{
			MAC:  "aa:bb:cc:00:01:01",
			Meta: json.RawMessage(`{"interfaces": [{"name": "eth9", "mac": "aa:bb:cc:00:00:02"}]}`),
		}, errdefs.IsAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.nodes.RegisterNode(h.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.class(err), "unexpected class for %v", err)
		})
	}

	nodes, err := h.nodes.ListNodes(h.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "rejected registrations leave nothing behind")
	assert.Empty(t, h.published())
}

func TestUpdateNode(t *testing.T) {
	h := newHarness(t)
	node := h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	other := h.register(t, "aa:bb:cc:00:09:01", `{"interfaces": [{"name": "eth0", "mac": "aa:bb:cc:00:09:01"}]}`)
	h.published()

	t.Run("status and name", func(t *testing.T) {
		updated, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{
			Status: ptr(domain.NodeStatusReady),
			Name:   ptr("compute-1"),
			ID:     ptr(int64(999)),
		})
		require.NoError(t, err)
		assert.Equal(t, node.ID, updated.ID, "id in the body is ignored")
		assert.Equal(t, domain.NodeStatusReady, updated.Status)
		assert.Equal(t, "compute-1", updated.Name)
		assert.Equal(t, []EventType{EventNodeUpdated}, h.published())
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{Status: ptr(domain.NodeStatus("lost"))})
		assert.True(t, errdefs.IsInvalidArgument(err))
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := h.nodes.UpdateNode(h.ctx, 404, NodeUpdate{Name: ptr("x")})
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("meta interfaces merge", func(t *testing.T) {
		updated, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{Meta: json.RawMessage(`{"interfaces": [
			{"name": "ens1", "mac": "aa:bb:cc:00:00:01", "current_speed": 10000},
			{"name": "ens3", "mac": "aa:bb:cc:00:00:04"}
		]}`)})
		require.NoError(t, err)
		require.Len(t, updated.Interfaces, 3, "eth1 is kept although it was not reported")

		renamed, ok := updated.InterfaceByMAC("aa:bb:cc:00:00:01")
		require.True(t, ok)
		assert.Equal(t, "ens1", renamed.Name)
		assert.Equal(t, 10000, *renamed.CurrentSpeed)

		_, ok = updated.InterfaceByMAC("aa:bb:cc:00:00:04")
		assert.True(t, ok)
		assert.Empty(t, updated.Meta)
	})

	t.Run("meta interface owned by another node", func(t *testing.T) {
		_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{
			Name: ptr("stolen"),
			Meta: json.RawMessage(`{"interfaces": [{"name": "eth5", "mac": "aa:bb:cc:00:09:01"}]}`),
		})
		assert.True(t, errdefs.IsAlreadyExists(err))

		stored, err := h.nodes.GetNode(h.ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, "compute-1", stored.Name, "failed update is rolled back")

		owner, err := h.nodes.GetNode(h.ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, owner.Interfaces, 1)
	})

	t.Run("strict interface shape", func(t *testing.T) {
		_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{Meta: json.RawMessage(`{"interfaces": ["eth0"]}`)})
		assert.True(t, errdefs.IsInvalidArgument(err))
	})
}

func TestUpdateNodeClusterChangeClearsAssignments(t *testing.T) {
	h := newHarness(t)
	prod, nets := h.cluster(t, "prod", "management")
	staging, _ := h.cluster(t, "staging", "management")
	node := h.register(t, "aa:bb:cc:00:00:01", twoNICs)

	_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: &prod.ID}})
	require.NoError(t, err)

	nics, version, err := h.nodes.GetInterfaces(h.ctx, node.ID)
	require.NoError(t, err)
	require.NoError(t, h.nodes.ApplyAssignment(h.ctx, domain.NodeProposal{
		NodeID: node.ID,
		Interfaces: []domain.InterfaceProposal{
			{InterfaceID: nics[0].ID, AssignedNetworks: []domain.NetworkRef{{ID: nets[0]}}},
		},
	}, &version))

	_, err = h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: &prod.ID}})
	require.NoError(t, err)
	nics, sameVersion, err := h.nodes.GetInterfaces(h.ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, version+1, sameVersion, "same cluster keeps assignments")
	assert.Equal(t, []int64{nets[0]}, nics[0].AssignedNetworks)

	moved, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: &staging.ID}})
	require.NoError(t, err)
	assert.Equal(t, staging.ID, *moved.ClusterID)
	assert.Equal(t, sameVersion+1, moved.TopologyVersion)
	for _, nic := range moved.Interfaces {
		assert.Empty(t, nic.AssignedNetworks)
	}

	detached, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, detached.ClusterID)

	_, err = h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: ptr(int64(77))}})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestUpdateNodes(t *testing.T) {
	h := newHarness(t)
	first := h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	second := h.register(t, "aa:bb:cc:00:09:01", `{"interfaces": [{"name": "eth0", "mac": "aa:bb:cc:00:09:01"}]}`)
	h.published()

	nodes, err := h.nodes.UpdateNodes(h.ctx, []NodeUpdate{
		{MAC: "AA:BB:CC:00:00:02", Online: ptr(false)},
		{ID: &second.ID, Status: ptr(domain.NodeStatusProvisioning)},
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, first.ID, nodes[0].ID, "interface mac selects its node")
	assert.False(t, nodes[0].Online)
	assert.Equal(t, domain.NodeStatusProvisioning, nodes[1].Status)
	assert.Equal(t, []EventType{EventNodeUpdated, EventNodeUpdated}, h.published())

	tests := []struct {
		name    string
		updates []NodeUpdate
	}{
		{"not a list", nil},
		{"no selector", []NodeUpdate{{Online: ptr(true)}}},
		{"unknown mac", []NodeUpdate{{MAC: "ff:ff:ff:00:00:00"}}},
		{"unknown id", []NodeUpdate{{ID: ptr(int64(999))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.nodes.UpdateNodes(h.ctx, tt.updates)
			assert.True(t, errdefs.IsInvalidArgument(err), "got %v", err)
		})
	}

	t.Run("one bad entry rolls back the batch", func(t *testing.T) {
		_, err := h.nodes.UpdateNodes(h.ctx, []NodeUpdate{
			{ID: &first.ID, Name: ptr("renamed")},
			{ID: ptr(int64(999))},
		})
		require.Error(t, err)
		stored, err := h.nodes.GetNode(h.ctx, first.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "renamed", stored.Name)
	})
}

func TestDeleteNode(t *testing.T) {
	h := newHarness(t)
	node := h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	h.published()

	require.NoError(t, h.nodes.DeleteNode(h.ctx, node.ID))
	assert.Equal(t, []EventType{EventNodeDeleted}, h.published())

	_, err := h.nodes.GetNode(h.ctx, node.ID)
	assert.True(t, errdefs.IsNotFound(err))
	assert.True(t, errdefs.IsNotFound(h.nodes.DeleteNode(h.ctx, node.ID)))

	// the interface macs are free again
	h.register(t, "aa:bb:cc:00:00:01", twoNICs)
}

func TestAssignments(t *testing.T) {
	h := newHarness(t)
	prod, nets := h.cluster(t, "prod", "management", "storage")
	_, foreign := h.cluster(t, "staging", "public")
	node := h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: &prod.ID}})
	require.NoError(t, err)

	nics, version, err := h.nodes.GetInterfaces(h.ctx, node.ID)
	require.NoError(t, err)
	want := domain.NodeProposal{NodeID: node.ID, Interfaces: []domain.InterfaceProposal{
		{InterfaceID: nics[0].ID, AssignedNetworks: []domain.NetworkRef{{ID: nets[0]}, {ID: nets[1]}}},
	}}
	bad := domain.NodeProposal{NodeID: node.ID, Interfaces: []domain.InterfaceProposal{
		{InterfaceID: nics[1].ID, AssignedNetworks: []domain.NetworkRef{{ID: foreign[0]}}},
	}}
	h.published()

	t.Run("validate", func(t *testing.T) {
		ok, err := h.nodes.ValidateAssignment(h.ctx, []domain.NodeProposal{want})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.nodes.ValidateAssignment(h.ctx, []domain.NodeProposal{want, bad})
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = h.nodes.ValidateAssignment(h.ctx, []domain.NodeProposal{{NodeID: 404}})
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("apply with version", func(t *testing.T) {
		require.NoError(t, h.nodes.ApplyAssignment(h.ctx, want, &version))
		assert.Equal(t, []EventType{EventAssignmentsUpdated}, h.published())

		err := h.nodes.ApplyAssignment(h.ctx, want, &version)
		assert.True(t, errdefs.IsFailedPrecondition(err))
		assert.ErrorIs(t, err, topology.ErrStaleTopology)
		assert.Empty(t, h.published())
	})

	t.Run("forbidden network", func(t *testing.T) {
		err := h.nodes.ApplyAssignmentCollection(h.ctx, []domain.NodeProposal{bad})
		assert.True(t, errdefs.IsInvalidArgument(err))
		assert.ErrorIs(t, err, topology.ErrForbiddenNetwork)
	})

	t.Run("collection", func(t *testing.T) {
		clear := domain.NodeProposal{NodeID: node.ID, Interfaces: []domain.InterfaceProposal{{InterfaceID: nics[0].ID}}}
		require.NoError(t, h.nodes.ApplyAssignmentCollection(h.ctx, []domain.NodeProposal{clear}))
		assert.Equal(t, []EventType{EventAssignmentsUpdated}, h.published())

		got, _, err := h.nodes.GetInterfaces(h.ctx, node.ID)
		require.NoError(t, err)
		assert.Empty(t, got[0].AssignedNetworks)

		require.NoError(t, h.nodes.ApplyAssignmentCollection(h.ctx, nil))
		assert.Empty(t, h.published())
	})

	t.Run("discover", func(t *testing.T) {
		found, err := h.nodes.DiscoverInterfaces(h.ctx, node.ID, domain.ProbeInterfaces{{Name: "eth7", MAC: "AA:00:00:00:00:07"}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "aa:00:00:00:00:07", found[0].MAC)
		assert.Equal(t, node.ID, found[0].NodeID)
	})

	t.Run("resolve", func(t *testing.T) {
		err := h.nodes.ResolveConflicts(h.ctx, []domain.NodeProposal{bad})
		assert.True(t, errdefs.IsNotImplemented(err))
	})
}

func TestClusters(t *testing.T) {
	h := newHarness(t)
	release := &domain.Release{Name: "Essex", Version: "2012.1"}
	require.NoError(t, h.releases.CreateRelease(h.ctx, release))

	cluster := &domain.Cluster{Name: "prod", ReleaseID: &release.ID}
	require.NoError(t, h.clusters.CreateCluster(h.ctx, cluster))
	assert.Equal(t, domain.NetManagerFlat, cluster.NetManager)

	t.Run("duplicate name", func(t *testing.T) {
		err := h.clusters.CreateCluster(h.ctx, &domain.Cluster{Name: "prod"})
		assert.True(t, errdefs.IsAlreadyExists(err))
	})

	t.Run("unknown release", func(t *testing.T) {
		err := h.clusters.CreateCluster(h.ctx, &domain.Cluster{Name: "lab", ReleaseID: ptr(int64(42))})
		assert.True(t, errdefs.IsInvalidArgument(err))
	})

	t.Run("bad net manager", func(t *testing.T) {
		_, err := h.clusters.UpdateCluster(h.ctx, cluster.ID, ClusterUpdate{NetManager: ptr("Magic")})
		assert.True(t, errdefs.IsInvalidArgument(err))
	})

	t.Run("update keeps own name", func(t *testing.T) {
		updated, err := h.clusters.UpdateCluster(h.ctx, cluster.ID, ClusterUpdate{
			Name:       ptr("prod"),
			NetManager: ptr(domain.NetManagerVlan),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.NetManagerVlan, updated.NetManager)
	})

	t.Run("attributes", func(t *testing.T) {
		attrs, err := h.clusters.GetAttributes(h.ctx, cluster.ID)
		require.NoError(t, err)
		assert.Empty(t, attrs.Editable)

		_, err = h.clusters.UpdateAttributes(h.ctx, cluster.ID, map[string]json.RawMessage{"generated": json.RawMessage(`{}`)})
		assert.True(t, errdefs.IsInvalidArgument(err))
		_, err = h.clusters.UpdateAttributes(h.ctx, cluster.ID, map[string]json.RawMessage{"editable": json.RawMessage(`"x"`)})
		assert.True(t, errdefs.IsInvalidArgument(err))

		attrs, err = h.clusters.UpdateAttributes(h.ctx, cluster.ID, map[string]json.RawMessage{"editable": json.RawMessage(`{"debug": true}`)})
		require.NoError(t, err)
		assert.Equal(t, true, attrs.Editable["debug"])

		_, err = h.clusters.GetAttributes(h.ctx, 404)
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("networks", func(t *testing.T) {
		g := &domain.NetworkGroup{Name: "management", CIDR: "10.0.0.0/24"}
		require.NoError(t, h.clusters.CreateNetwork(h.ctx, cluster.ID, g))
		err := h.clusters.CreateNetwork(h.ctx, cluster.ID, &domain.NetworkGroup{Name: "management"})
		assert.True(t, errdefs.IsAlreadyExists(err))
		err = h.clusters.CreateNetwork(h.ctx, cluster.ID, &domain.NetworkGroup{})
		assert.True(t, errdefs.IsInvalidArgument(err))

		groups, err := h.clusters.ListNetworks(h.ctx, cluster.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)

		require.NoError(t, h.clusters.DeleteNetwork(h.ctx, g.ID))
		assert.True(t, errdefs.IsNotFound(h.clusters.DeleteNetwork(h.ctx, g.ID)))
	})
}

func TestDeleteClusterDetachesNodes(t *testing.T) {
	h := newHarness(t)
	prod, nets := h.cluster(t, "prod", "management")
	node := h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	_, err := h.nodes.UpdateNode(h.ctx, node.ID, NodeUpdate{ClusterID: OptionalID{Set: true, ID: &prod.ID}})
	require.NoError(t, err)

	nics, _, err := h.nodes.GetInterfaces(h.ctx, node.ID)
	require.NoError(t, err)
	require.NoError(t, h.nodes.ApplyAssignment(h.ctx, domain.NodeProposal{NodeID: node.ID, Interfaces: []domain.InterfaceProposal{
		{InterfaceID: nics[0].ID, AssignedNetworks: []domain.NetworkRef{{ID: nets[0]}}},
	}}, nil))
	before, err := h.nodes.GetNode(h.ctx, node.ID)
	require.NoError(t, err)

	require.NoError(t, h.clusters.DeleteCluster(h.ctx, prod.ID))

	after, err := h.nodes.GetNode(h.ctx, node.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ClusterID)
	assert.Equal(t, before.TopologyVersion+1, after.TopologyVersion)
	for _, nic := range after.Interfaces {
		assert.Empty(t, nic.AssignedNetworks)
	}
	assert.True(t, errdefs.IsNotFound(h.clusters.DeleteCluster(h.ctx, prod.ID)))
}

func TestReleases(t *testing.T) {
	h := newHarness(t)

	essex := &domain.Release{Name: " Essex ", Version: "2012.1"}
	require.NoError(t, h.releases.CreateRelease(h.ctx, essex))
	assert.Equal(t, "Essex", essex.Name)

	assert.True(t, errdefs.IsInvalidArgument(h.releases.CreateRelease(h.ctx, &domain.Release{Name: "Folsom"})))
	assert.True(t, errdefs.IsInvalidArgument(h.releases.CreateRelease(h.ctx, &domain.Release{Version: "1"})))
	assert.True(t, errdefs.IsAlreadyExists(h.releases.CreateRelease(h.ctx, &domain.Release{Name: "Essex", Version: "2012.1"})))

	folsom := &domain.Release{Name: "Folsom", Version: "2012.2"}
	require.NoError(t, h.releases.CreateRelease(h.ctx, folsom))
	_, err := h.releases.UpdateRelease(h.ctx, folsom.ID, ReleaseUpdate{Name: ptr("Essex"), Version: ptr("2012.1")})
	assert.True(t, errdefs.IsAlreadyExists(err))

	updated, err := h.releases.UpdateRelease(h.ctx, folsom.ID, ReleaseUpdate{Description: ptr("Folsom on Ubuntu")})
	require.NoError(t, err)
	assert.Equal(t, "Folsom on Ubuntu", updated.Description)
	assert.Equal(t, "2012.2", updated.Version)

	require.NoError(t, h.releases.DeleteRelease(h.ctx, folsom.ID))
	_, err = h.releases.GetRelease(h.ctx, folsom.ID)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)
	h.register(t, "aa:bb:cc:00:00:01", twoNICs)
	h.register(t, "aa:bb:cc:00:09:01", `{"interfaces": []}`)
	h.published()

	notes, err := h.notes.ListNotifications(h.ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	newest, oldest := notes[0], notes[1]
	assert.Greater(t, newest.ID, oldest.ID)

	_, err = h.notes.UpdateStatus(h.ctx, newest.ID, "archived")
	assert.True(t, errdefs.IsInvalidArgument(err))
	_, err = h.notes.UpdateStatus(h.ctx, 404, "read")
	assert.True(t, errdefs.IsNotFound(err))

	n, err := h.notes.UpdateStatus(h.ctx, newest.ID, "read")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationRead, n.Status)

	_, err = h.notes.UpdateStatuses(h.ctx, []NotificationUpdate{
		{ID: &oldest.ID, Status: ptr("read")},
		{ID: ptr(int64(404)), Status: ptr("read")},
	})
	assert.True(t, errdefs.IsInvalidArgument(err))
	stored, err := h.notes.GetNotification(h.ctx, oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationUnread, stored.Status, "batch is rolled back")

	_, err = h.notes.UpdateStatuses(h.ctx, []NotificationUpdate{{ID: &oldest.ID}})
	assert.True(t, errdefs.IsInvalidArgument(err))

	h.published()
	out, err := h.notes.UpdateStatuses(h.ctx, []NotificationUpdate{
		{ID: &oldest.ID, Status: ptr("read")},
		{ID: &newest.ID, Status: ptr("unread")},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, domain.NotificationUnread, out[1].Status)
	assert.Equal(t, []EventType{EventNotificationsUpdated}, h.published())
}

func TestOptionalIDUnmarshal(t *testing.T) {
	var upd NodeUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"name": "n"}`), &upd))
	assert.False(t, upd.ClusterID.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"cluster_id": null}`), &upd))
	assert.True(t, upd.ClusterID.Set)
	assert.Nil(t, upd.ClusterID.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"cluster_id": 7}`), &upd))
	require.NotNil(t, upd.ClusterID.ID)
	assert.Equal(t, int64(7), *upd.ClusterID.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"cluster_id": "seven"}`), &upd))
}
