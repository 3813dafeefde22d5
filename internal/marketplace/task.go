package marketplace

// Status is a marketplace task status string.
type Status = string

const (
	StatusOpen       Status = "open"
	StatusBidding    Status = "bidding"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

// Networks the marketplace operates on.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Task is a point-in-time snapshot of a marketplace task. It is consumed for
// diffing and broadcast, never stored.
type Task struct {
	ID            string `json:"id"`
	Status        Status `json:"status"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Reward        string `json:"reward,omitempty"`
	Network       string `json:"network,omitempty"`
	AssignedAgent string `json:"assignedAgent,omitempty"`
	PosterAddress string `json:"posterAddress,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// Agent is one entry in the remote agent directory.
type Agent struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	WalletAddress string `json:"walletAddress"`
}

// terminalStatuses are statuses after which a task is not expected to change.
var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
	StatusExpired:   {},
}

// IsTerminal reports whether a status is terminal.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// PollStatuses is the ordered status list the all-agent poller walks, from
// active states through terminal ones so closing transitions still broadcast.
var PollStatuses = []Status{
	StatusBidding,
	StatusAssigned,
	StatusInProgress,
	StatusSubmitted,
	StatusCompleted,
	StatusCancelled,
	StatusRejected,
	StatusExpired,
}
