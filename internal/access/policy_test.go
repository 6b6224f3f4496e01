package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicy_Screens(t *testing.T) {
	t.Parallel()

	p := MustNewPolicy()

	ids := func(screens []Screen) []string {
		out := make([]string, 0, len(screens))
		for _, s := range screens {
			out = append(out, s.ID)
		}
		return out
	}

	require.Equal(t,
		[]string{ScreenDashboard, ScreenMateriasPrimas, ScreenProdutos},
		ids(p.VisibleScreens(RoleUser)))
	require.Equal(t,
		[]string{ScreenDashboard, ScreenMateriasPrimas, ScreenProdutos, ScreenUsuarios},
		ids(p.VisibleScreens(RoleAdmin)))
	require.Empty(t, p.VisibleScreens(RoleNone))
}

func TestPolicy_Actions(t *testing.T) {
	t.Parallel()

	p := MustNewPolicy()

	cases := []struct {
		role     Role
		resource string
		action   string
		want     bool
	}{
		{RoleUser, ScreenMateriasPrimas, ActionRead, true},
		{RoleUser, ScreenMateriasPrimas, ActionWrite, true},
		{RoleUser, ScreenMateriasPrimas, ActionDelete, false},
		{RoleUser, ScreenUsuarios, ActionCreate, false},
		{RoleUser, ScreenUsuarios, ActionView, false},
		{RoleAdmin, ScreenMateriasPrimas, ActionRead, true},
		{RoleAdmin, ScreenProdutos, ActionDelete, true},
		{RoleAdmin, ScreenUsuarios, ActionCreate, true},
		{RoleAdmin, ScreenUsuarios, ActionUpdate, true},
		{RoleNone, ScreenDashboard, ActionView, false},
		{Role("root"), ScreenUsuarios, ActionCreate, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, p.Can(tc.role, tc.resource, tc.action),
			"%s %s %s", tc.role, tc.resource, tc.action)
	}
}
