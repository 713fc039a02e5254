// Package scheduler wires the recurrence engine, the scheduling state
// machine and the free/busy aggregator to their collaborators: the event
// store, the message sender, the free/busy source and the identity
// resolver.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/freebusy"
	"github.com/pverga/libitip/internal/dateutil"
	"github.com/pverga/libitip/itip"
	"github.com/pverga/libitip/recurrence"
	"github.com/pverga/libitip/storage"
)

// MessageSender delivers one scheduling message to one recipient.
type MessageSender interface {
	Send(ctx context.Context, msg *calendar.SchedulingMessage, recipient calendar.Attendee) error
}

// IdentityResolver maps acting users to their email addresses.
type IdentityResolver interface {
	IsSelf(email string) bool
	EmailsOf(user string) []string
}

// Options tunes a Scheduler.
type Options struct {
	// Policy is the site notification policy.
	Policy itip.NotifyPolicy
	// LookupTimeout bounds each free/busy lookup.
	LookupTimeout time.Duration
	// UndoTTL keeps pre-mutation snapshots available for this long. Zero
	// disables the undo ledger.
	UndoTTL time.Duration
	// Engine overrides the recurrence engine. Defaults to a fresh one.
	Engine *recurrence.Engine
	Logger *slog.Logger
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Scheduler is the engine facade. One logical operation per call; all
// state lives in the injected collaborators.
type Scheduler struct {
	store    storage.EventStore
	sender   MessageSender
	source   freebusy.Source
	identity IdentityResolver
	engine   *recurrence.Engine
	undo     *UndoLedger
	policy   itip.NotifyPolicy
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a scheduler. The store and identity resolver are required;
// sender and free/busy source may be nil when the deployment does not
// deliver messages or aggregate availability.
func New(store storage.EventStore, sender MessageSender, source freebusy.Source, identity IdentityResolver, opts Options) (*Scheduler, error) {
	if store == nil {
		return nil, calendar.NewError(calendar.KindValidation, "event store is required")
	}
	if identity == nil {
		return nil, calendar.NewError(calendar.KindValidation, "identity resolver is required")
	}
	engine := opts.Engine
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	var undo *UndoLedger
	if opts.UndoTTL > 0 {
		undo = NewUndoLedger(opts.UndoTTL)
	}
	return &Scheduler{
		store:    store,
		sender:   sender,
		source:   source,
		identity: identity,
		engine:   engine,
		undo:     undo,
		policy:   opts.Policy,
		timeout:  opts.LookupTimeout,
		logger:   logger,
		now:      now,
	}, nil
}

// Close releases the scheduler's background resources.
func (s *Scheduler) Close() {
	if s.undo != nil {
		s.undo.Close()
	}
	s.engine.Close()
}

// Engine exposes the recurrence engine for direct expansion queries.
func (s *Scheduler) Engine() *recurrence.Engine {
	return s.engine
}

func (s *Scheduler) identityOf(user string) itip.Identity {
	emails := s.identity.EmailsOf(user)
	id := itip.Identity{Email: user, Emails: emails}
	if len(emails) > 0 {
		id.Email = emails[0]
	}
	return id
}

// ApplyOptions tunes one scheduling mutation.
type ApplyOptions struct {
	// InstanceID targets a single occurrence of a recurring event; the
	// change is materialized as an exception on the master.
	InstanceID string
	// ThisAndFuture extends an instance-targeted change to all later
	// occurrences.
	ThisAndFuture bool
	// Comment is carried on the outgoing scheduling messages.
	Comment string
	// SuppressRSVP creates attendees without requesting replies.
	SuppressRSVP bool
}

// Apply performs one scheduling mutation: it validates permissions, runs
// the reschedule check, commits through the store's compare-and-swap and
// fans out the resulting messages. Delivery failures never roll back the
// committed change; they are reported in the DeliveryResult.
func (s *Scheduler) Apply(ctx context.Context, action itip.Action, ev *calendar.Event, actingUser string, opts ApplyOptions) (*calendar.Event, []calendar.SchedulingMessage, *DeliveryResult, error) {
	if ev == nil {
		return nil, nil, nil, calendar.NewError(calendar.KindValidation, "apply: nil event")
	}
	id := s.identityOf(actingUser)

	if action == itip.ActionNew {
		return s.applyCreate(ctx, ev, id, opts)
	}

	old, err := s.store.Get(ctx, ev.UID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !id.IsOrganizer(old) {
		return nil, nil, nil, calendar.NewError(calendar.KindPermissionDenied,
			"%s is not the organizer of %s", actingUser, ev.UID)
	}
	if staleSnapshot(ev, old) {
		return nil, nil, nil, calendar.NewError(calendar.KindStaleWrite,
			"mutation of %s is based on sequence %d/%s, stored is %d/%s",
			ev.UID, ev.Sequence, ev.Changed, old.Sequence, old.Changed)
	}

	if action == itip.ActionRemove {
		return s.applyRemove(ctx, old, id, opts)
	}

	var next *calendar.Event
	if opts.InstanceID != "" {
		next, err = s.applyInstanceOverride(old, ev, opts)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		next = ev.Clone()
		next.DedupAttendees()
		if itip.IsReschedule(old, next) {
			itip.ResetParticipation(next)
		}
		if err := next.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}

	// The stored copy, not the caller's snapshot, is the sequence
	// authority: the bump always lands on old.Sequence+1.
	next.Sequence = old.Sequence
	itip.BumpSequence(next, s.now())
	if err := s.store.PutIfSequence(ctx, next, old.Sequence); err != nil {
		return nil, nil, nil, err
	}
	s.recordUndo(action, old)

	msgs := itip.BuildMessages(action, old, next, id, s.policy, opts.Comment)
	result := s.deliver(ctx, msgs)
	return next, msgs, result, nil
}

// staleSnapshot reports whether the caller's event snapshot is older than
// the stored copy under the (sequence, changed) ordering. A snapshot with
// no change timestamp is guarded by its sequence alone.
func staleSnapshot(ev, stored *calendar.Event) bool {
	if ev.Sequence != stored.Sequence {
		return ev.Sequence < stored.Sequence
	}
	return !ev.Changed.IsZero() && ev.Changed.Before(stored.Changed)
}

func (s *Scheduler) applyCreate(ctx context.Context, ev *calendar.Event, id itip.Identity, opts ApplyOptions) (*calendar.Event, []calendar.SchedulingMessage, *DeliveryResult, error) {
	next := ev.Clone()
	if err := itip.PrepareCreate(next, id, itip.CreateOptions{SuppressRSVP: opts.SuppressRSVP}); err != nil {
		return nil, nil, nil, err
	}
	if err := s.store.PutIfSequence(ctx, next, 0); err != nil {
		return nil, nil, nil, err
	}
	msgs := itip.BuildMessages(itip.ActionNew, nil, next, id, s.policy, opts.Comment)
	result := s.deliver(ctx, msgs)
	return next, msgs, result, nil
}

func (s *Scheduler) applyRemove(ctx context.Context, old *calendar.Event, id itip.Identity, opts ApplyOptions) (*calendar.Event, []calendar.SchedulingMessage, *DeliveryResult, error) {
	if err := s.store.Delete(ctx, old.UID); err != nil {
		return nil, nil, nil, err
	}
	s.recordUndo(itip.ActionRemove, old)
	msgs := itip.BuildMessages(itip.ActionRemove, old, nil, id, s.policy, opts.Comment)
	result := s.deliver(ctx, msgs)
	return nil, msgs, result, nil
}

// applyInstanceOverride turns an edit of one occurrence into an exception
// on the master. When the change reschedules the occurrence, participation
// is reset on the override only, leaving the rest of the series untouched.
func (s *Scheduler) applyInstanceOverride(old, edited *calendar.Event, opts ApplyOptions) (*calendar.Event, error) {
	next := old.Clone()
	override := edited.Clone()
	override.Recurrence = nil
	override.Exceptions = nil
	override.ExDates = nil

	prev, err := s.resolveInstance(old, opts.InstanceID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, calendar.NewError(calendar.KindValidation,
			"event %s has no occurrence %s", old.UID, opts.InstanceID)
	}
	if itip.IsReschedule(&prev.Event, override) {
		itip.ResetParticipation(override)
	}
	if err := itip.MaterializeOverride(next, opts.InstanceID, override, opts.ThisAndFuture); err != nil {
		return nil, err
	}
	return next, nil
}

// resolveInstance finds one occurrence by its identifier, scanning a
// two-day window around the identifier's date.
func (s *Scheduler) resolveInstance(ev *calendar.Event, instanceID string) (*calendar.Instance, error) {
	at, err := dateutil.ParseKey(instanceID, ev.Start.Location())
	if err != nil {
		return nil, calendar.WrapError(calendar.KindValidation, err,
			"bad instance identifier %q", instanceID)
	}
	windowStart := dateutil.StartOfDay(at)
	instances, err := s.engine.Resolve(ev, windowStart, windowStart.Add(48*time.Hour),
		&recurrence.ResolveOptions{WantedInstanceID: instanceID})
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	inst := instances[0]
	return &inst, nil
}

// ImportInbound applies an inbound scheduling message to the acting user's
// stored copy and commits the result through the compare-and-swap guard.
func (s *Scheduler) ImportInbound(ctx context.Context, msg *calendar.SchedulingMessage, actingUser string) (*calendar.Event, error) {
	if msg == nil || msg.Event == nil {
		return nil, calendar.NewError(calendar.KindValidation, "import: message has no event")
	}
	id := s.identityOf(actingUser)

	if msg.Method == calendar.MethodReply {
		return s.importReply(ctx, msg, id)
	}

	local, err := s.store.Get(ctx, msg.Event.UID)
	if err != nil {
		if !calendar.IsKind(err, calendar.KindNotFound) {
			return nil, err
		}
		local = nil
	}
	next, err := itip.ImportInbound(local, msg, id, itip.ImportOptions{})
	if err != nil {
		return nil, err
	}
	expected := 0
	if local != nil {
		expected = local.Sequence
	}
	if err := s.store.PutIfSequence(ctx, next, expected); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Scheduler) importReply(ctx context.Context, msg *calendar.SchedulingMessage, id itip.Identity) (*calendar.Event, error) {
	stored, err := s.store.Get(ctx, msg.Event.UID)
	if err != nil {
		return nil, err
	}
	if !id.IsOrganizer(stored) {
		return nil, calendar.NewError(calendar.KindPermissionDenied,
			"reply for %s received by a copy not organized by %s", stored.UID, id.Email)
	}

	next := stored.Clone()
	if msg.InstanceID != "" {
		if err := s.applyReplyToInstance(next, msg); err != nil {
			return nil, err
		}
	} else {
		if err := itip.ApplyReply(next, msg); err != nil {
			return nil, err
		}
	}
	next.Changed = s.now().UTC()
	if err := s.store.PutIfSequence(ctx, next, stored.Sequence); err != nil {
		return nil, err
	}
	return next, nil
}

// applyReplyToInstance records an occurrence-scoped reply as an exception
// on the master, creating the override from the live instance when none
// exists yet.
func (s *Scheduler) applyReplyToInstance(master *calendar.Event, msg *calendar.SchedulingMessage) error {
	var override *calendar.Event
	if ex, ok := master.Exceptions[msg.InstanceID]; ok && ex.Override != nil {
		override = ex.Override.Clone()
	} else {
		inst, err := s.resolveInstance(master, msg.InstanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return calendar.NewError(calendar.KindValidation,
				"event %s has no instance %s", master.UID, msg.InstanceID)
		}
		override = inst.Event.Clone()
	}
	if err := itip.ApplyReply(override, msg); err != nil {
		return err
	}
	return itip.MaterializeOverride(master, msg.InstanceID, override, false)
}

// Availability collects free/busy contributions for the event's attendees
// and aggregates them into a slot grid for the window.
func (s *Scheduler) Availability(ctx context.Context, attendees []calendar.Attendee, windowStart, windowEnd time.Time, slotMinutes int, viewer *time.Location) (*freebusy.AggregatedGrid, error) {
	if s.source == nil {
		return nil, calendar.NewError(calendar.KindFreeBusyUnavailable, "no free/busy source configured")
	}
	contributions := freebusy.Collect(ctx, s.source, attendees, windowStart, windowEnd,
		freebusy.CollectOptions{Timeout: s.timeout, Logger: s.logger})
	return freebusy.Aggregate(contributions, windowStart, windowEnd, slotMinutes, viewer), nil
}

func (s *Scheduler) recordUndo(action itip.Action, snapshot *calendar.Event) {
	if s.undo != nil {
		s.undo.Record(action, snapshot)
	}
}

// Undo restores the most recent recorded snapshot of the event, committing
// through the same compare-and-swap guard as any other mutation.
func (s *Scheduler) Undo(ctx context.Context, uid string) (*calendar.Event, error) {
	if s.undo == nil {
		return nil, calendar.NewError(calendar.KindValidation, "undo ledger is not enabled")
	}
	entry, ok := s.undo.Pop(uid)
	if !ok {
		return nil, calendar.NewError(calendar.KindNotFound, "no undo snapshot for %s", uid)
	}
	restored := entry.Snapshot.Clone()
	current, err := s.store.Get(ctx, uid)
	switch {
	case err == nil:
		restored.Sequence = current.Sequence + 1
		restored.Changed = s.now().UTC()
		if err := s.store.PutIfSequence(ctx, restored, current.Sequence); err != nil {
			return nil, err
		}
	case calendar.IsKind(err, calendar.KindNotFound):
		// Undoing a remove: the event is gone, restore it as-is.
		restored.Changed = s.now().UTC()
		if err := s.store.PutIfSequence(ctx, restored, 0); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return restored, nil
}
