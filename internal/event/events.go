package event

// Type defines the type of event.
type Type uint16

const (
	EvLoad Type = iota + 1
	EvRefresh
	EvToggleFavorite
	EvReorder
	EvToggleReorderMode
	EvClearNotice
)

func (t Type) String() string {
	switch t {
	case EvLoad:
		return "LOAD"
	case EvRefresh:
		return "REFRESH"
	case EvToggleFavorite:
		return "TOGGLE_FAVORITE"
	case EvReorder:
		return "REORDER"
	case EvToggleReorderMode:
		return "TOGGLE_REORDER_MODE"
	case EvClearNotice:
		return "CLEAR_NOTICE"
	default:
		return "UNKNOWN"
	}
}

// Event is the interface for all engine events.
type Event interface {
	GetType() Type
	GetTs() int64
}

// BaseEvent contains common fields for all events.
// Ts is the submission timestamp in unix micros.
type BaseEvent struct {
	Ts int64 `json:"ts"`
}

func (e BaseEvent) GetTs() int64 { return e.Ts }

// LoadEvent requests the initial load of the watch list.
type LoadEvent struct {
	BaseEvent
	Symbols []string `json:"symbols"`
}

func (e LoadEvent) GetType() Type { return EvLoad }

// RefreshEvent requests a price refresh. Scheduler ticks and user pulls
// submit the same event; the engine never distinguishes origin.
type RefreshEvent struct {
	BaseEvent
}

func (e RefreshEvent) GetType() Type { return EvRefresh }

// ToggleFavoriteEvent flips the favorite flag of one symbol.
type ToggleFavoriteEvent struct {
	BaseEvent
	Symbol string `json:"symbol"`
}

func (e ToggleFavoriteEvent) GetType() Type { return EvToggleFavorite }

// ReorderEvent moves the asset at From to To within the displayed
// sequence. Indices address the published, overlay-applied order.
type ReorderEvent struct {
	BaseEvent
	From int `json:"from"`
	To   int `json:"to"`
}

func (e ReorderEvent) GetType() Type { return EvReorder }

// ToggleReorderModeEvent flips the reorder-mode flag.
type ToggleReorderModeEvent struct {
	BaseEvent
}

func (e ToggleReorderModeEvent) GetType() Type { return EvToggleReorderMode }

// ClearNoticeEvent dismisses the transient notice message.
type ClearNoticeEvent struct {
	BaseEvent
}

func (e ClearNoticeEvent) GetType() Type { return EvClearNotice }
