package relay

// Push-channel message types. Everything except state_response flows
// server to client; state_response is the only inbound type the relay
// interprets.
const (
	TypeNewTasks      = "new_tasks"
	TypeTaskUpdates   = "task_updates"
	TypePaymentTx     = "payment_tx"
	TypePollWatched   = "poll_watched"
	TypeReload        = "reload"
	TypeStateRequest  = "state_request"
	TypeStateResponse = "state_response"
)

// Message is the JSON envelope pushed to clients: {"type": ..., ...payload}.
type Message map[string]any

// NewMessage builds an envelope of the given type with extra payload fields.
func NewMessage(msgType string, fields map[string]any) Message {
	msg := make(Message, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	msg["type"] = msgType
	return msg
}
