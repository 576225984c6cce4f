package irisfast

import "context"

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// WSClient is what the bot needs from the inbound connection.
type WSClient interface {
	Connect(ctx context.Context) error
	State() WebSocketState
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	WriteJSON(ctx context.Context, v any) error
	Close(ctx context.Context) error
}

var _ WSClient = (*WebSocket)(nil)
