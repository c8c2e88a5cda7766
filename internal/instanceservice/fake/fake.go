// Package fake provides an in-memory instanceservice.InstanceService test
// double. It records every call so tests can assert dry-run purity and
// retry counts, and lets tests script per-call faults and outcomes without
// a network.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
)

// Call is one recorded invocation, in the order it happened.
type Call struct {
	Method string // "List", "Get", "Start", "BeginUpgrade", "BeginRollback", "GetOperation", "CheckUpgradable"
	Name   string // instance name or operation handle, when applicable
}

// Op is a scripted long-running operation: it reports not-done for
// PendingPolls polls, then resolves with the given outcome.
type Op struct {
	Kind         string // "start", "upgrade", "rollback"
	Instance     string
	PendingPolls int
	FinalError   entity.ErrorKind
	FinalMessage string
}

// Service is an InstanceService test double. Construct it with New; use
// SetUpgradable, SetSnapshot, QueueBeginFault and ResolveOp to script
// behaviour before handing it to the engine.
type Service struct {
	mu sync.Mutex

	byLocation map[string][]entity.InstanceSnapshot
	byName     map[string]entity.InstanceSnapshot
	calls      []Call

	// beginFaults scripts errors to return from Begin*/Start calls, keyed
	// by "<method>:<name>", consumed one at a time (FIFO) per key so a
	// sequence of failures followed by success can be expressed.
	beginFaults map[string][]error

	ops     map[instanceservice.OperationHandle]*Op
	opSeq   int
	upgrade map[string]instanceservice.UpgradabilityInfo
}

// New returns an empty fake populated from snapshots, indexed by location
// and by fully qualified name.
func New(snapshots ...entity.InstanceSnapshot) *Service {
	s := &Service{
		byLocation:  map[string][]entity.InstanceSnapshot{},
		byName:      map[string]entity.InstanceSnapshot{},
		beginFaults: map[string][]error{},
		ops:         map[instanceservice.OperationHandle]*Op{},
		upgrade:     map[string]instanceservice.UpgradabilityInfo{},
	}
	for _, snap := range snapshots {
		s.byLocation[snap.Location] = append(s.byLocation[snap.Location], snap)
		s.byName[snap.Name] = snap
	}
	return s
}

// SetUpgradable scripts the CheckUpgradable response for name.
func (s *Service) SetUpgradable(name string, upgradable bool, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upgrade[name] = instanceservice.UpgradabilityInfo{Upgradable: upgradable, TargetVersion: target}
}

// QueueBeginFault appends a scripted error to be returned the next N times
// method is invoked for name, before falling through to real behaviour.
func (s *Service) QueueBeginFault(method, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + ":" + name
	s.beginFaults[key] = append(s.beginFaults[key], err)
}

// SetSnapshot overwrites or inserts the snapshot for an instance, updating
// both indexes. Useful for advancing fixtures between polls in a test.
func (s *Service) SetSnapshot(snap entity.InstanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSnapshotLocked(snap)
}

func (s *Service) setSnapshotLocked(snap entity.InstanceSnapshot) {
	s.byName[snap.Name] = snap
	list := s.byLocation[snap.Location]
	for i, existing := range list {
		if existing.Name == snap.Name {
			list[i] = snap
			s.byLocation[snap.Location] = list
			return
		}
	}
	s.byLocation[snap.Location] = append(list, snap)
}

// Calls returns a copy of the recorded call log.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// MutatingCalls filters Calls to Start/BeginUpgrade/BeginRollback, for dry
// run purity assertions.
func (s *Service) MutatingCalls() []Call {
	var out []Call
	for _, c := range s.Calls() {
		switch c.Method {
		case "Start", "BeginUpgrade", "BeginRollback":
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) record(method, name string) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Name: name})
	s.mu.Unlock()
}

func (s *Service) List(_ context.Context, _ string, location string) ([]entity.InstanceSnapshot, error) {
	s.record("List", location)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]entity.InstanceSnapshot(nil), s.byLocation[location]...)
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *Service) Get(_ context.Context, name string) (entity.InstanceSnapshot, error) {
	s.record("Get", name)
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.byName[name]
	if !ok {
		return entity.InstanceSnapshot{}, entity.NewServiceError(entity.ErrorKindNotFound, "no such instance: "+name)
	}
	return snap, nil
}

func (s *Service) consumeFault(method, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + ":" + name
	queue := s.beginFaults[key]
	if len(queue) == 0 {
		return nil
	}
	s.beginFaults[key] = queue[1:]
	return queue[0]
}

func (s *Service) beginOp(kind, name string) instanceservice.OperationHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opSeq++
	handle := instanceservice.OperationHandle(fmt.Sprintf("operations/%s-%d", kind, s.opSeq))
	s.ops[handle] = &Op{Kind: kind, Instance: name}
	return handle
}

func (s *Service) Start(_ context.Context, name string) (instanceservice.OperationHandle, error) {
	s.record("Start", name)
	if err := s.consumeFault("Start", name); err != nil {
		return "", err
	}
	return s.beginOp("start", name), nil
}

func (s *Service) BeginUpgrade(_ context.Context, name string) (instanceservice.OperationHandle, error) {
	s.record("BeginUpgrade", name)
	if err := s.consumeFault("BeginUpgrade", name); err != nil {
		return "", err
	}
	return s.beginOp("upgrade", name), nil
}

func (s *Service) BeginRollback(_ context.Context, name string) (instanceservice.OperationHandle, error) {
	s.record("BeginRollback", name)
	if err := s.consumeFault("BeginRollback", name); err != nil {
		return "", err
	}
	return s.beginOp("rollback", name), nil
}

func (s *Service) GetOperation(_ context.Context, handle instanceservice.OperationHandle) (instanceservice.OperationOutcome, error) {
	s.record("GetOperation", string(handle))
	s.mu.Lock()
	op, ok := s.ops[handle]
	s.mu.Unlock()
	if !ok {
		return instanceservice.OperationOutcome{}, entity.NewServiceError(entity.ErrorKindNotFound, "no such operation: "+string(handle))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if op.PendingPolls > 0 {
		op.PendingPolls--
		return instanceservice.OperationOutcome{Done: false}, nil
	}
	return instanceservice.OperationOutcome{Done: true, ErrorKind: op.FinalError, ErrorMessage: op.FinalMessage}, nil
}

// ResolveOp scripts how handle resolves: after pendingPolls further polls
// report not-done, GetOperation reports done with the given error (zero
// value for success).
func (s *Service) ResolveOp(handle instanceservice.OperationHandle, pendingPolls int, finalError entity.ErrorKind, finalMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[handle]; ok {
		op.PendingPolls = pendingPolls
		op.FinalError = finalError
		op.FinalMessage = finalMessage
	}
}

func (s *Service) CheckUpgradable(_ context.Context, name string) (instanceservice.UpgradabilityInfo, error) {
	s.record("CheckUpgradable", name)
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.upgrade[name]
	if !ok {
		return instanceservice.UpgradabilityInfo{Upgradable: false}, nil
	}
	return info, nil
}

var _ instanceservice.InstanceService = (*Service)(nil)
