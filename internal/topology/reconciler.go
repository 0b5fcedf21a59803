package topology

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fleetforge/internal/domain"
	"fleetforge/internal/logging"
)

// Recorder receives reconciliation outcomes for metrics
type Recorder interface {
	AssignmentsApplied(mode string, nodes int)
	AssignmentsRejected(kind string)
	DiscoveryDropped(reason string, count int)
}

type noopRecorder struct{}

func (noopRecorder) AssignmentsApplied(string, int) {}
func (noopRecorder) AssignmentsRejected(string)     {}
func (noopRecorder) DiscoveryDropped(string, int)   {}

// Reconciler applies validated assignment proposals to the store
type Reconciler struct {
	store    Store
	recorder Recorder
	tracer   trace.Tracer
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithRecorder sets the metrics recorder
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewReconciler creates a reconciler over store
func NewReconciler(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		recorder: noopRecorder{},
		tracer:   otel.Tracer("fleetforge/internal/topology"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate runs the validator against a fresh snapshot of the store
func (r *Reconciler) Validate(ctx context.Context, proposals []domain.NodeProposal) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "topology.Validate",
		trace.WithAttributes(attribute.Int("proposals", len(proposals))))
	defer span.End()

	tx, err := r.store.BeginReadTx(ctx)
	if err != nil {
		return Result{}, r.fail(span, err)
	}
	defer tx.Rollback()

	res, err := Check(ctx, tx, proposals)
	if err != nil {
		return Result{}, r.fail(span, err)
	}
	span.SetAttributes(attribute.Bool("allowed", res.Allowed))
	return res, nil
}

// ResolveConflicts runs conflict resolution against a fresh snapshot
func (r *Reconciler) ResolveConflicts(ctx context.Context, proposals []domain.NodeProposal) error {
	tx, err := r.store.BeginReadTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return ResolveConflicts(ctx, tx, proposals)
}

// ApplyOne validates and applies the proposal for a single node
func (r *Reconciler) ApplyOne(ctx context.Context, p domain.NodeProposal) error {
	return r.apply(ctx, "one", []domain.NodeProposal{p}, nil)
}

// ApplyOneAtVersion is ApplyOne that fails with ErrStaleTopology unless the
// node is still at the given topology version
func (r *Reconciler) ApplyOneAtVersion(ctx context.Context, p domain.NodeProposal, version int64) error {
	return r.apply(ctx, "one", []domain.NodeProposal{p}, &version)
}

// ApplyCollection applies proposals for several nodes as one atomic unit.
// Either every node's edges are replaced or none are.
func (r *Reconciler) ApplyCollection(ctx context.Context, proposals []domain.NodeProposal) error {
	return r.apply(ctx, "collection", proposals, nil)
}

func (r *Reconciler) apply(ctx context.Context, mode string, proposals []domain.NodeProposal, version *int64) error {
	ctx, span := r.tracer.Start(ctx, "topology.Apply",
		trace.WithAttributes(
			attribute.String("mode", mode),
			attribute.Int("proposals", len(proposals)),
		))
	defer span.End()

	if len(proposals) == 0 {
		return nil
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return r.fail(span, err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Claim every node up front, in id order, so the snapshot validated
	// below cannot change before the writes land.
	if err := tx.LockNodes(ctx, nodeIDs(proposals)); err != nil {
		return r.fail(span, fmt.Errorf("lock nodes: %w", err))
	}
	if version != nil {
		if err := checkVersion(ctx, tx, proposals[0].NodeID, *version); err != nil {
			return r.fail(span, err)
		}
	}

	for _, p := range proposals {
		res, err := Check(ctx, tx, []domain.NodeProposal{p})
		if err != nil {
			r.reject(err)
			return r.fail(span, err)
		}
		if !res.Allowed {
			r.reject(res.Violation)
			return r.fail(span, res.Violation)
		}

		if err := replaceEdges(ctx, tx, p); err != nil {
			return r.fail(span, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.fail(span, fmt.Errorf("commit assignments: %w", err))
	}
	committed = true

	r.recorder.AssignmentsApplied(mode, len(proposals))
	logging.WithComponent("topology").WithField("nodes", len(proposals)).
		Infof("Applied %s assignment update", mode)
	return nil
}

// checkVersion compares against the version before LockNodes bumped it
func checkVersion(ctx context.Context, tx Tx, nodeID, version int64) error {
	node, err := tx.GetNode(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("get node %d: %w", nodeID, err)
	}
	if node == nil {
		// reported by the validator
		return nil
	}
	if current := node.TopologyVersion - 1; current != version {
		return fmt.Errorf("%w: node %d is at version %d, not %d", ErrStaleTopology, nodeID, current, version)
	}
	return nil
}

// replaceEdges swaps the assignment set of every interface the proposal names
func replaceEdges(ctx context.Context, tx Tx, p domain.NodeProposal) error {
	ifaceIDs := p.InterfaceIDs()
	if len(ifaceIDs) == 0 {
		return nil
	}
	if err := tx.DeleteAssignments(ctx, ifaceIDs); err != nil {
		return fmt.Errorf("delete assignments of node %d: %w", p.NodeID, err)
	}
	edges := p.Edges()
	if len(edges) == 0 {
		return nil
	}
	if err := tx.InsertAssignments(ctx, edges); err != nil {
		return fmt.Errorf("insert assignments of node %d: %w", p.NodeID, err)
	}
	return nil
}

// InterfacesFromProbe binds discovered interfaces to a persisted node
func (r *Reconciler) InterfacesFromProbe(node *domain.Node, probe domain.ProbeInterfaces) ([]domain.NIC, error) {
	if node == nil {
		return nil, &ValidationError{Kind: KindMalformedInput, Detail: "node is required"}
	}
	nics, drops, err := discover(node.ID, probe)
	if err != nil {
		return nil, err
	}
	logDrops(node.ID, drops)

	counts := make(map[string]int)
	for _, d := range drops {
		counts[d.Reason]++
	}
	for reason, n := range counts {
		r.recorder.DiscoveryDropped(reason, n)
	}
	return nics, nil
}

func (r *Reconciler) reject(err error) {
	if verr, ok := AsValidationError(err); ok {
		r.recorder.AssignmentsRejected(string(verr.Kind))
	}
}

func (r *Reconciler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func nodeIDs(proposals []domain.NodeProposal) []int64 {
	seen := make(map[int64]struct{}, len(proposals))
	ids := make([]int64, 0, len(proposals))
	for _, p := range proposals {
		if _, dup := seen[p.NodeID]; dup {
			continue
		}
		seen[p.NodeID] = struct{}{}
		ids = append(ids, p.NodeID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
