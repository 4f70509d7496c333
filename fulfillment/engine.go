package fulfillment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go-emtrack/types"
)

// Input is raw operator text for a numeric field. It decodes from either a
// JSON string or a JSON number.
type Input string

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*in = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	*in = Input(data)
	return nil
}

type PartialInput struct {
	Quantity *Input  `json:"quantity,omitempty"`
	Time     *string `json:"time,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type PartialEdit struct {
	Index int `json:"index"`
	PartialInput
}

// Patch is one operator edit. Nil fields are left untouched.
type Patch struct {
	Done             *bool   `json:"done,omitempty"`
	Item             *string `json:"item,omitempty"`
	Quantity         *Input  `json:"quantity,omitempty"`
	Category         *string `json:"category,omitempty"`
	Source           *string `json:"source,omitempty"`
	Remarks          *string `json:"remarks,omitempty"`
	EstimatedMinutes *Input  `json:"estimatedMinutes,omitempty"`
	ETA              *string `json:"eta,omitempty"`

	AddPartial    *PartialInput `json:"addPartial,omitempty"`
	UpdatePartial *PartialEdit  `json:"updatePartial,omitempty"`
	RemovePartial *int          `json:"removePartial,omitempty"`
}

// SourceLookup resolves sources under the active location.
type SourceLookup interface {
	Sources(category string) []types.SourceEntry
	Lookup(category, name string) (types.SourceEntry, bool)
}

type Env struct {
	Now      time.Time
	SpeedKmh float64
	Sources  SourceLookup
}

// Effects are the instructions ApplyEdit hands back to the caller instead of
// performing them itself.
type Effects struct {
	Changed    bool
	Reclassify bool
	Explicit   bool
	Transition Transition
	Warnings   []error
}

// ScheduleAutosave reports whether the edit mutated the record.
func (fx Effects) ScheduleAutosave() bool {
	return fx.Changed
}

func (fx *Effects) record(tr Transition) {
	if tr == NoTransition {
		return
	}
	fx.Transition = tr
	fx.Changed = true
	fx.Reclassify = true
}

func (fx *Effects) warn(err error) {
	fx.Warnings = append(fx.Warnings, err)
}

func (fx *Effects) frozen(rec types.RequestRecord, field string) bool {
	if !rec.Done {
		return false
	}
	fx.warn(fmt.Errorf("%s: %w", field, types.ErrRecordFrozen))
	return true
}

func (fx *Effects) coerce(field string, in Input) types.OptInt {
	v, clean := types.CoerceInt(string(in))
	if !clean {
		fx.warn(&types.ValidationWarning{Field: field, Input: string(in)})
	}
	return v
}

// ApplyEdit is the single transition function for request records. It never
// mutates rec and never fails; rejected or coerced input is reported in
// Effects.Warnings.
//
// An explicit done toggle is applied first and suppresses automatic
// completion for the rest of the patch. Field edits then see the post-toggle
// state, so a record being reopened can be edited in the same patch.
func ApplyEdit(rec types.RequestRecord, p Patch, env Env) (types.RequestRecord, Effects) {
	if env.Now.IsZero() {
		env.Now = time.Now()
	}
	out := rec.Clone()
	var fx Effects

	if p.Done != nil {
		var tr Transition
		out, tr = SetDone(out, *p.Done, env.Now)
		fx.Explicit = true
		fx.record(tr)
	}
	before := out.Clone()
	qtyChanged := false

	if p.Item != nil && !fx.frozen(out, "item") && out.Item != *p.Item {
		out.Item = *p.Item
		fx.Changed = true
	}
	if p.Quantity != nil && !fx.frozen(out, "quantity") {
		if v := fx.coerce("quantity", *p.Quantity); v != out.Quantity {
			out.Quantity = v
			fx.Changed = true
			qtyChanged = true
		}
	}
	if p.Remarks != nil && !fx.frozen(out, "remarks") && out.Remarks != *p.Remarks {
		out.Remarks = *p.Remarks
		fx.Changed = true
	}
	if p.Category != nil {
		applyCategory(&out, strings.TrimSpace(*p.Category), p.Source != nil, env, &fx)
	}
	if p.Source != nil {
		applySource(&out, strings.TrimSpace(*p.Source), env, &fx)
	}
	if p.EstimatedMinutes != nil && !fx.frozen(out, "estimatedMinutes") {
		v := fx.coerce("estimatedMinutes", *p.EstimatedMinutes)
		out.EstimatedMinutes = v
		if v.Set {
			out.ETA = ETAFrom(env.Now, v.Value)
		}
		fx.Changed = true
		fx.Reclassify = true
	}
	if p.ETA != nil && !fx.frozen(out, "eta") {
		eta := strings.TrimSpace(*p.ETA)
		if _, ok := ParseHM(eta); eta != "" && !ok {
			fx.warn(&types.ValidationWarning{Field: "eta", Input: eta, Reason: "not in H:MM or HH:MM form"})
		}
		// The estimate is not back-derived from a typed eta.
		out.ETA = eta
		fx.Changed = true
		fx.Reclassify = true
	}

	partialMutated := false
	if p.AddPartial != nil {
		out.Partials = append(out.Partials, newPartial(*p.AddPartial, env.Now, &fx))
		partialMutated = true
	}
	if p.UpdatePartial != nil {
		if updatePartial(&out, *p.UpdatePartial, &fx) {
			partialMutated = true
		}
	}
	if p.RemovePartial != nil {
		i := *p.RemovePartial
		if i < 0 || i >= len(out.Partials) {
			fx.warn(fmt.Errorf("partial %d: %w", i, types.ErrPartialNotFound))
		} else {
			out.Partials = append(out.Partials[:i:i], out.Partials[i+1:]...)
			partialMutated = true
		}
	}
	if partialMutated {
		fx.Changed = true
	}

	if (partialMutated || qtyChanged) && !fx.Explicit {
		var tr Transition
		out, tr = EvaluateAutoCompletion(before, out, env.Now)
		fx.record(tr)
	}
	return out, fx
}

// applyCategory clears a dependent source that the new category does not
// offer, unless the same patch also picks a source.
func applyCategory(out *types.RequestRecord, category string, sourceInPatch bool, env Env, fx *Effects) {
	if category == out.Category {
		return
	}
	out.Category = category
	fx.Changed = true
	if out.Source == "" || sourceInPatch {
		return
	}
	if env.Sources == nil {
		out.Source = ""
		return
	}
	if _, ok := env.Sources.Lookup(category, out.Source); !ok {
		out.Source = ""
	}
}

// applySource stores the selection and, when the source resolves in the
// catalog, derives the estimate and eta from its distance. An unresolved name
// is kept as text.
func applySource(out *types.RequestRecord, source string, env Env, fx *Effects) {
	if source == out.Source {
		return
	}
	out.Source = source
	fx.Changed = true
	if source == "" {
		return
	}
	var (
		entry types.SourceEntry
		ok    bool
	)
	if env.Sources != nil {
		entry, ok = env.Sources.Lookup(out.Category, source)
	}
	if !ok {
		fx.warn(&types.DriftError{Kind: "source", Name: source})
		return
	}
	if out.Done {
		return
	}
	mins := EstimateFromSource(entry, env.SpeedKmh)
	out.EstimatedMinutes = types.Int(mins)
	out.ETA = ETAFrom(env.Now, mins)
	fx.Reclassify = true
}

func newPartial(in PartialInput, now time.Time, fx *Effects) types.PartialDelivery {
	p := types.PartialDelivery{Quantity: types.Int(1), Time: FormatHM(now)}
	if in.Quantity != nil {
		p.Quantity = fx.coerce("partial.quantity", *in.Quantity)
	}
	if in.Time != nil {
		p.Time = strings.TrimSpace(*in.Time)
	}
	if in.Notes != nil {
		p.Notes = *in.Notes
	}
	return p
}

func updatePartial(out *types.RequestRecord, edit PartialEdit, fx *Effects) bool {
	if edit.Index < 0 || edit.Index >= len(out.Partials) {
		fx.warn(fmt.Errorf("partial %d: %w", edit.Index, types.ErrPartialNotFound))
		return false
	}
	p := &out.Partials[edit.Index]
	if edit.Quantity != nil {
		p.Quantity = fx.coerce("partial.quantity", *edit.Quantity)
	}
	if edit.Time != nil {
		p.Time = strings.TrimSpace(*edit.Time)
	}
	if edit.Notes != nil {
		p.Notes = *edit.Notes
	}
	return true
}
