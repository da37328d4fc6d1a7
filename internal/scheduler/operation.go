package scheduler

import (
	"context"

	"github.com/yplo6403/rcsjta-sub005/internal/syncer"
)

// OperationType is the kind of work the scheduler runs on the message store.
type OperationType int

const (
	OpSyncPeriodic OperationType = iota + 1
	OpSyncForDataConnection
	OpSyncForUserActivity
	OpPushMessages
	OpUpdateFlags
)

func (t OperationType) String() string {
	switch t {
	case OpSyncPeriodic:
		return "SYNC_PERIODIC"
	case OpSyncForDataConnection:
		return "SYNC_FOR_DATA_CONNECTION"
	case OpSyncForUserActivity:
		return "SYNC_FOR_USER_ACTIVITY"
	case OpPushMessages:
		return "PUSH_MESSAGES"
	case OpUpdateFlags:
		return "UPDATE_FLAGS"
	default:
		return "UNKNOWN"
	}
}

// OperationTypes returns every operation type in declaration order.
func OperationTypes() []OperationType {
	return []OperationType{OpSyncPeriodic, OpSyncForDataConnection, OpSyncForUserActivity, OpPushMessages, OpUpdateFlags}
}

// IsSync reports whether t belongs to the mutually exclusive sync family.
func (t OperationType) IsSync() bool {
	return t == OpSyncPeriodic || t == OpSyncForDataConnection || t == OpSyncForUserActivity
}

// Operation is one admitted unit of work. Param is the contact or chat id the
// caller scheduled it for, empty for every folder.
type Operation struct {
	Type  OperationType
	Param string

	folder string
}

// Listener is told about every completed operation of the types it registered for.
type Listener interface {
	OperationCompleted(op Operation, success bool)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(op Operation, success bool)

func (f ListenerFunc) OperationCompleted(op Operation, success bool) {
	f(op, success)
}

// Connector hands out the single message store session.
type Connector interface {
	Acquire(ctx context.Context) (syncer.Transport, error)
	Release() error
	// Terminate closes the session under a running operation.
	Terminate()
}

// Executor runs operations on an acquired session.
type Executor interface {
	Sync(ctx context.Context, t syncer.Transport, folder string) error
	PushMessages(ctx context.Context, t syncer.Transport, folder string) error
	UpdateFlags(ctx context.Context, t syncer.Transport) error
}

// Namer maps a contact or chat id to its folder.
type Namer interface {
	FolderFor(id string) string
}

var _ Executor = (*syncer.Synchronizer)(nil)
