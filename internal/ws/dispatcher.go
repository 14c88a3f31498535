package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pliu/chatvideo/internal/store"
	"github.com/rs/zerolog/log"
)

// Drop is returned by a handler that refuses an envelope: the acting user
// lacks standing, the referenced entity is gone, or the request would not
// change anything. It never reaches the client.
type Drop struct {
	Reason string
}

func (d *Drop) Error() string { return "dropped: " + d.Reason }

func drop(reason string) error { return &Drop{Reason: reason} }

// Drop reasons.
const (
	DropMalformed      = "malformed"
	DropUnrecognized   = "unrecognized"
	DropUnknownUser    = "unknown_user"
	DropUnknownMessage = "unknown_message"
	DropNotParticipant = "not_participant"
	DropNotSender      = "not_sender"
	DropDeleted        = "deleted"
	DropNoReaction     = "no_reaction"
	DropNotMember      = "not_member"
)

// DispatchObserver sees every inbound envelope and its outcome.
type DispatchObserver interface {
	Received(kind string)
	Dropped(kind, reason string)
	Failed(kind string)
}

type Dispatcher struct {
	store    store.Store
	registry *Registry
	observer DispatchObserver
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithDispatchObserver(o DispatchObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(st store.Store, r *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{store: st, registry: r, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch decodes one frame from userID, runs its handler and fans the
// result out. Every failure ends here: nothing is reported to the sender.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		d.dropped("", DropMalformed)
		log.Debug().Err(err).Int64("user_id", userID).Msg("Dropped malformed envelope.")
		return
	}
	kind := Kind(ev)
	if d.observer != nil {
		d.observer.Received(kind)
	}

	outs, err := d.Handle(ctx, userID, ev)
	var dropErr *Drop
	switch {
	case errors.As(err, &dropErr):
		d.dropped(kind, dropErr.Reason)
		log.Debug().Int64("user_id", userID).Str("type", kind).Str("reason", dropErr.Reason).Msg("Dropped envelope.")
		return
	case err != nil:
		if d.observer != nil {
			d.observer.Failed(kind)
		}
		log.Error().Err(err).Int64("user_id", userID).Str("type", kind).Msg("An error occurred when handling envelope.")
		return
	}
	Fanout(d.registry, outs)
}

func (d *Dispatcher) dropped(kind, reason string) {
	if d.observer != nil {
		d.observer.Dropped(kind, reason)
	}
}

// Handle runs the handler for ev on behalf of userID and returns what it
// would broadcast, without sending anything.
func (d *Dispatcher) Handle(ctx context.Context, userID int64, ev Event) ([]Outbound, error) {
	switch ev := ev.(type) {
	case *ChatMessage:
		return d.handleMessage(ctx, userID, ev)
	case *CallRequest:
		return d.handleCallRequest(ctx, userID, ev)
	case *CallAccept:
		return assembleSignal(SignalEnvelope{Type: TypeCallAccept, From: userID}, ev.To), nil
	case *CallReject:
		return assembleSignal(SignalEnvelope{Type: TypeCallReject, From: userID}, ev.To), nil
	case *IncomingCall:
		return d.handleIncomingCall(ctx, userID, ev)
	case *CallAnswer:
		return assembleSignal(SignalEnvelope{Type: TypeCallAnswer, From: userID, SDP: ev.SDP}, ev.To), nil
	case *ICECandidate:
		return assembleSignal(SignalEnvelope{Type: TypeICECandidate, From: userID, Candidate: ev.Candidate}, ev.To), nil
	case *CallEnd:
		return assembleSignal(SignalEnvelope{Type: TypeCallEnd, From: userID}, ev.To), nil
	case *Typing:
		return assembleSignal(SignalEnvelope{Type: TypeTyping, From: userID}, ev.To), nil
	case *AddReaction:
		return d.handleAddReaction(ctx, userID, ev)
	case *RemoveReaction:
		return d.handleRemoveReaction(ctx, userID, ev)
	case *EditMessage:
		return d.handleEdit(ctx, userID, ev)
	case *DeleteMessage:
		return d.handleDelete(ctx, userID, ev)
	case *MarkRead:
		return d.handleMarkRead(ctx, userID, ev)
	case *GroupChatMessage:
		return d.handleGroupMessage(ctx, userID, ev)
	case *GroupAddReaction:
		return d.handleGroupReaction(ctx, userID, ev)
	case *GroupEditMessage:
		return d.handleGroupEdit(ctx, userID, ev)
	case *GroupDeleteMessage:
		return d.handleGroupDelete(ctx, userID, ev)
	case *GroupTyping:
		return d.handleGroupTyping(ctx, userID, ev)
	case Unrecognized:
		return nil, drop(DropUnrecognized)
	default:
		return nil, fmt.Errorf("no handler for %T", ev)
	}
}

// lookup maps store.ErrNotFound to a drop with reason and passes other
// errors through.
func lookup(err error, reason string) error {
	if errors.Is(err, store.ErrNotFound) {
		return drop(reason)
	}
	return err
}
