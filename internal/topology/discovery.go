package topology

import (
	"fleetforge/internal/domain"
	"fleetforge/internal/logging"
)

// Reasons a probe entry is dropped during discovery
const (
	DropIncomplete = "incomplete"
	DropDuplicate  = "duplicate_mac"
)

// Drop records a probe entry discovery did not accept
type Drop struct {
	Index  int
	Reason string
	Entry  domain.ProbeInterface
}

// Discover converts a probe report into NIC records owned by nodeID.
//
// A nil report fails with ErrMalformedInput. Entries without a name or MAC
// are dropped, as is any entry whose MAC repeats one accepted earlier in the
// same report. Accepted entries keep their input order.
func Discover(nodeID int64, probe domain.ProbeInterfaces) ([]domain.NIC, error) {
	nics, drops, err := discover(nodeID, probe)
	if err != nil {
		return nil, err
	}
	logDrops(nodeID, drops)
	return nics, nil
}

func discover(nodeID int64, probe domain.ProbeInterfaces) ([]domain.NIC, []Drop, error) {
	if probe == nil {
		return nil, nil, &ValidationError{
			Kind:   KindMalformedInput,
			NodeID: nodeID,
			Detail: "failed to discover node: invalid interfaces info",
		}
	}

	var (
		nics  = make([]domain.NIC, 0, len(probe))
		drops []Drop
		seen  = make(map[string]struct{}, len(probe))
	)
	for i, entry := range probe {
		if !entry.Usable() {
			drops = append(drops, Drop{Index: i, Reason: DropIncomplete, Entry: entry})
			continue
		}

		mac := domain.NormalizeMAC(entry.MAC)
		if _, dup := seen[mac]; dup {
			drops = append(drops, Drop{Index: i, Reason: DropDuplicate, Entry: entry})
			continue
		}
		seen[mac] = struct{}{}

		nics = append(nics, domain.NIC{
			NodeID:           nodeID,
			Name:             entry.Name,
			MAC:              mac,
			CurrentSpeed:     entry.CurrentSpeed,
			MaxSpeed:         entry.MaxSpeed,
			AssignedNetworks: []int64{},
		})
	}
	return nics, drops, nil
}

func logDrops(nodeID int64, drops []Drop) {
	if len(drops) == 0 {
		return
	}
	logger := logging.WithNode("topology", nodeID)
	for _, d := range drops {
		switch d.Reason {
		case DropDuplicate:
			verr := &ValidationError{Kind: KindDuplicateInterface, NodeID: nodeID, MAC: domain.NormalizeMAC(d.Entry.MAC)}
			logger.WithField("index", d.Index).Warn(verr.Error())
		default:
			logger.WithField("index", d.Index).Debugf("dropping interface without name or mac (name=%q, mac=%q)", d.Entry.Name, d.Entry.MAC)
		}
	}
}
