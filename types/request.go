package types

import "time"

type LifecycleState string

const (
	Pending LifecycleState = "pending"
	Done    LifecycleState = "done"
)

// ETAStatus is the temporal classification of a pending request.
type ETAStatus string

const (
	ETANone        ETAStatus = ""
	ETAUnknown     ETAStatus = "unknown"
	ETAOnTime      ETAStatus = "on_time"
	ETAApproaching ETAStatus = "approaching"
	ETADue         ETAStatus = "due"
)

type PartialDelivery struct {
	Quantity OptInt `json:"quantity"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

// RequestRecord is one logged resource request. Partials are kept after
// completion for audit.
type RequestRecord struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"createdAt"`
	Item             string            `json:"item"`
	Quantity         OptInt            `json:"quantity"`
	Category         string            `json:"category"`
	Source           string            `json:"source"`
	Remarks          string            `json:"remarks"`
	EstimatedMinutes OptInt            `json:"estimatedMinutes"`
	ETA              string            `json:"eta"`
	Done             bool              `json:"done"`
	DoneAt           string            `json:"doneAt"`
	Partials         []PartialDelivery `json:"partials"`
	ResourceLocation string            `json:"resourceLocation,omitempty"`
}

func (r RequestRecord) State() LifecycleState {
	if r.Done {
		return Done
	}
	return Pending
}

// PartialTotal sums delivered quantities; blank entries count as zero.
func (r RequestRecord) PartialTotal() int {
	total := 0
	for _, p := range r.Partials {
		total += p.Quantity.OrZero()
	}
	return total
}

// Clone returns a copy that shares no slices with r.
func (r RequestRecord) Clone() RequestRecord {
	out := r
	out.Partials = make([]PartialDelivery, len(r.Partials))
	copy(out.Partials, r.Partials)
	return out
}
