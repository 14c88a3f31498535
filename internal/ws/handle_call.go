package ws

import "context"

// call_request and incoming_call introduce the caller; the rest of the call
// signals are relayed by Handle directly.

func (d *Dispatcher) handleCallRequest(ctx context.Context, userID int64, ev *CallRequest) ([]Outbound, error) {
	caller, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleCall(TypeCallRequest, userID, ev.To, ev.CallType, caller.Summary(), nil), nil
}

func (d *Dispatcher) handleIncomingCall(ctx context.Context, userID int64, ev *IncomingCall) ([]Outbound, error) {
	caller, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleCall(TypeIncomingCall, userID, ev.To, ev.CallType, caller.Summary(), ev.SDP), nil
}
