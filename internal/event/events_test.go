package event

import "testing"

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{EvLoad, "LOAD"},
		{EvRefresh, "REFRESH"},
		{EvToggleFavorite, "TOGGLE_FAVORITE"},
		{EvReorder, "REORDER"},
		{EvToggleReorderMode, "TOGGLE_REORDER_MODE"},
		{EvClearNotice, "CLEAR_NOTICE"},
		{Type(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.typ.String(); got != c.want {
			t.Errorf("Type(%d).String() = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestEventsCarryTheirType(t *testing.T) {
	cases := []struct {
		ev   Event
		want Type
	}{
		{LoadEvent{Symbols: []string{"BTC"}}, EvLoad},
		{RefreshEvent{}, EvRefresh},
		{ToggleFavoriteEvent{Symbol: "BTC"}, EvToggleFavorite},
		{ReorderEvent{From: 0, To: 2}, EvReorder},
		{ToggleReorderModeEvent{}, EvToggleReorderMode},
		{ClearNoticeEvent{}, EvClearNotice},
	}
	for _, c := range cases {
		if c.ev.GetType() != c.want {
			t.Errorf("%T.GetType() = %v, want %v", c.ev, c.ev.GetType(), c.want)
		}
	}
}
