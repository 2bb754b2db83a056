package domain

// Action enumerates the mutation kinds carried by an envelope.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actor identifies who requested a mutation.
type Actor struct {
	CustomerID string `json:"customer_id"`
}

// MutationEnvelope is the message handed to the asynchronous workflow. It is
// produced once per mutation and owned by the workflow after dispatch; the
// request path never re-reads it.
type MutationEnvelope struct {
	EntityID string       `json:"entity_id"`
	Entity   Resource     `json:"entity"`
	Action   Action       `json:"action"`
	Actor    Actor        `json:"actor"`
	Assets   AssetPayload `json:"assets"`
}
