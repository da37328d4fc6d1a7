// Package scheduler serializes every message store operation on one worker
// goroutine and paces background synchronization.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Options tunes the pacing. Now is replaced in tests.
type Options struct {
	SyncInterval              time.Duration
	DataConnectionMinInterval time.Duration
	Now                       func() time.Time
}

// Scheduler admits operations into a FIFO drained by one worker. A periodic
// sync is re-armed SyncInterval after each completed sync.
type Scheduler struct {
	connector Connector
	executor  Executor
	namer     Namer
	opts      Options
	log       logrus.FieldLogger

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	cancel        context.CancelFunc
	wake          chan struct{}
	wg            sync.WaitGroup
	queue         []Operation
	current       *Operation
	periodicArmed bool
	periodicDue   time.Time
	lastSync      time.Time
	listeners     map[OperationType][]Listener
}

func New(connector Connector, executor Executor, namer Namer, opts Options, log logrus.FieldLogger) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 6 * time.Hour
	}
	return &Scheduler{
		connector: connector,
		executor:  executor,
		namer:     namer,
		opts:      opts,
		log:       log.WithField("component", "scheduler"),
		listeners: make(map[OperationType][]Listener),
	}
}

// Start launches the worker and arms the first periodic sync. Operations run
// with a context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.stopCh = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.armPeriodicLocked()

	s.log.WithField("sync_interval", s.opts.SyncInterval).Info("Starting scheduler")

	s.wg.Add(1)
	go s.runLoop(ctx, s.stopCh, s.wake)
	return nil
}

// Stop discards queued operations, cancels and tears down the operation in
// flight and waits for the worker to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.queue = nil
	s.periodicArmed = false
	close(s.stopCh)
	cancel := s.cancel
	inFlight := s.current != nil
	s.mu.Unlock()

	cancel()
	if inFlight {
		s.connector.Terminate()
	}
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// ScheduleSync synchronizes every folder.
func (s *Scheduler) ScheduleSync() bool {
	return s.scheduleSync(Operation{Type: OpSyncForUserActivity})
}

// ScheduleSyncForOneToOneConversation synchronizes the folder of one contact.
func (s *Scheduler) ScheduleSyncForOneToOneConversation(contact string) bool {
	return s.scheduleSync(Operation{Type: OpSyncForUserActivity, Param: contact, folder: s.namer.FolderFor(contact)})
}

// ScheduleSyncForGroupConversation synchronizes the folder of one group chat.
func (s *Scheduler) ScheduleSyncForGroupConversation(chatID string) bool {
	return s.scheduleSync(Operation{Type: OpSyncForUserActivity, Param: chatID, folder: s.namer.FolderFor(chatID)})
}

// ScheduleSyncForDataConnection synchronizes every folder after the network
// came back, unless a sync completed less than DataConnectionMinInterval ago.
func (s *Scheduler) ScheduleSyncForDataConnection() bool {
	return s.scheduleSync(Operation{Type: OpSyncForDataConnection})
}

// SchedulePushMessages uploads the messages queued for one contact, or for
// every folder when contact is empty.
func (s *Scheduler) SchedulePushMessages(contact string) bool {
	op := Operation{Type: OpPushMessages, Param: contact}
	if contact != "" {
		op.folder = s.namer.FolderFor(contact)
	}
	return s.scheduleLane(op)
}

// ScheduleUpdateFlags uploads the pending read and delete reports.
func (s *Scheduler) ScheduleUpdateFlags() bool {
	return s.scheduleLane(Operation{Type: OpUpdateFlags})
}

func (s *Scheduler) scheduleSync(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"operation": op.Type, "param": op.Param})
	if !s.running {
		log.Debug("Scheduler not running")
		return false
	}
	if s.current != nil && s.current.Type.IsSync() {
		log.Debug("Sync already running")
		return false
	}
	for _, queued := range s.queue {
		if queued.Type.IsSync() && queued.Type != OpSyncPeriodic {
			log.Debug("Sync already queued")
			return false
		}
	}
	if op.Type == OpSyncForDataConnection && !s.lastSync.IsZero() &&
		s.opts.Now().Sub(s.lastSync) < s.opts.DataConnectionMinInterval {
		log.Debug("Last sync too recent")
		return false
	}

	s.cancelPeriodicLocked()
	s.enqueueLocked(op)
	log.Debug("Operation scheduled")
	return true
}

func (s *Scheduler) scheduleLane(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"operation": op.Type, "param": op.Param})
	if !s.running {
		log.Debug("Scheduler not running")
		return false
	}
	for _, queued := range s.queue {
		if queued.Type == op.Type {
			log.Debug("Operation already pending")
			return false
		}
	}
	s.enqueueLocked(op)
	log.Debug("Operation scheduled")
	return true
}

func (s *Scheduler) enqueueLocked(op Operation) {
	s.queue = append(s.queue, op)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// cancelPeriodicLocked disarms the periodic timer and drops a periodic sync
// that fired but has not started yet.
func (s *Scheduler) cancelPeriodicLocked() {
	s.periodicArmed = false
	kept := s.queue[:0]
	for _, queued := range s.queue {
		if queued.Type != OpSyncPeriodic {
			kept = append(kept, queued)
		}
	}
	s.queue = kept
}

// armPeriodicLocked schedules the next periodic sync SyncInterval after the
// last completed sync, or after now if none completed yet.
func (s *Scheduler) armPeriodicLocked() {
	if !s.running {
		return
	}
	for _, queued := range s.queue {
		if queued.Type.IsSync() {
			return
		}
	}
	base := s.lastSync
	if base.IsZero() {
		base = s.opts.Now()
	}
	s.periodicArmed = true
	s.periodicDue = base.Add(s.opts.SyncInterval)
}

func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, wake <-chan struct{}) {
	defer s.wg.Done()

	for {
		if op, ok := s.dequeue(); ok {
			s.execute(ctx, op)
			continue
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if due, armed := s.nextPeriodic(); armed {
			timer = time.NewTimer(max(due.Sub(s.opts.Now()), 0))
			timerC = timer.C
		}

		select {
		case <-stopCh:
		case <-ctx.Done():
		case <-wake:
		case <-timerC:
			s.firePeriodic()
		}
		if timer != nil {
			timer.Stop()
		}

		select {
		case <-stopCh:
			return
		default:
		}
		if err := ctx.Err(); err != nil {
			s.log.WithError(err).Info("Scheduler context done")
			return
		}
	}
}

func (s *Scheduler) dequeue() (Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || len(s.queue) == 0 {
		return Operation{}, false
	}
	op := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &op
	return op, true
}

func (s *Scheduler) nextPeriodic() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodicDue, s.periodicArmed
}

func (s *Scheduler) firePeriodic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.periodicArmed || s.opts.Now().Before(s.periodicDue) {
		return
	}
	s.periodicArmed = false
	s.enqueueLocked(Operation{Type: OpSyncPeriodic})
}

func (s *Scheduler) execute(ctx context.Context, op Operation) {
	log := s.log.WithFields(logrus.Fields{"operation": op.Type, "param": op.Param})
	start := s.opts.Now()
	log.Info("Operation started")

	err := s.perform(ctx, op)
	if err != nil {
		log.WithError(err).Warn("Operation failed")
	} else {
		log.WithField("duration", s.opts.Now().Sub(start)).Info("Operation completed")
	}

	s.mu.Lock()
	s.current = nil
	if op.Type.IsSync() {
		s.lastSync = s.opts.Now()
	}
	s.armPeriodicLocked()
	listeners := append([]Listener(nil), s.listeners[op.Type]...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.OperationCompleted(op, err == nil)
	}
}

// perform runs op on a freshly acquired session and always releases it.
func (s *Scheduler) perform(ctx context.Context, op Operation) (err error) {
	transport, err := s.connector.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire session: %w", err)
	}
	defer func() {
		if releaseErr := s.connector.Release(); releaseErr != nil {
			s.log.WithError(releaseErr).Warn("Failed to release session")
		}
	}()

	switch op.Type {
	case OpSyncPeriodic, OpSyncForDataConnection, OpSyncForUserActivity:
		return s.executor.Sync(ctx, transport, op.folder)
	case OpPushMessages:
		return s.executor.PushMessages(ctx, transport, op.folder)
	case OpUpdateFlags:
		return s.executor.UpdateFlags(ctx, transport)
	default:
		return fmt.Errorf("unknown operation %d", op.Type)
	}
}

// RegisterListener subscribes l to completions of op. Registering the same
// comparable listener twice is a no-op. Listeners that cannot be compared,
// such as ListenerFunc values, are always added and cannot be unregistered;
// register a pointer to remove it later.
func (s *Scheduler) RegisterListener(op OperationType, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.listeners[op] {
		if sameListener(existing, l) {
			return
		}
	}
	s.listeners[op] = append(s.listeners[op], l)
}

func (s *Scheduler) UnregisterListener(op OperationType, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.listeners[op]
	for i, existing := range list {
		if sameListener(existing, l) {
			s.listeners[op] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// sameListener compares listeners without panicking on func or other
// uncomparable dynamic types.
func sameListener(a, b Listener) bool {
	return reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() && a == b
}

// CurrentOperation returns the operation in flight, if any.
func (s *Scheduler) CurrentOperation() (Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Operation{}, false
	}
	return *s.current, true
}

// HasPendingPeriodic reports whether a periodic sync is armed or queued.
func (s *Scheduler) HasPendingPeriodic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.periodicArmed {
		return true
	}
	for _, queued := range s.queue {
		if queued.Type == OpSyncPeriodic {
			return true
		}
	}
	return false
}
