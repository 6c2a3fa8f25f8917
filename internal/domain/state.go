package domain

// Phase is the lifecycle tag of a WatchState.
type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseRefreshing
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "UNINITIALIZED"
	case PhaseLoading:
		return "LOADING"
	case PhaseLoaded:
		return "LOADED"
	case PhaseRefreshing:
		return "REFRESHING"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// WatchState is the full view snapshot published by the engine.
//
// Assets is the display sequence with the custom order already applied;
// symbols in it are pairwise unique. CustomOrder may reference symbols
// absent from Assets and vice versa; the ordering overlay tolerates both.
// Notice is a transient, dismissible message; empty means none.
type WatchState struct {
	Phase       Phase           `json:"phase"`
	Assets      []Asset         `json:"assets,omitempty"`
	Favorites   map[string]bool `json:"favorites,omitempty"`
	CustomOrder []string        `json:"custom_order,omitempty"`
	ReorderMode bool            `json:"reorder_mode"`
	Notice      string          `json:"notice,omitempty"`
	Err         string          `json:"error,omitempty"`
}

// Clone returns a deep copy. Published snapshots must be isolated from
// the engine's working state, so slices and maps are never shared.
func (s *WatchState) Clone() *WatchState {
	out := &WatchState{
		Phase:       s.Phase,
		ReorderMode: s.ReorderMode,
		Notice:      s.Notice,
		Err:         s.Err,
	}

	if len(s.Assets) > 0 {
		out.Assets = make([]Asset, len(s.Assets))
		copy(out.Assets, s.Assets)
	}
	if len(s.CustomOrder) > 0 {
		out.CustomOrder = make([]string, len(s.CustomOrder))
		copy(out.CustomOrder, s.CustomOrder)
	}
	if s.Favorites != nil {
		out.Favorites = make(map[string]bool, len(s.Favorites))
		for k, v := range s.Favorites {
			out.Favorites[k] = v
		}
	}
	return out
}
