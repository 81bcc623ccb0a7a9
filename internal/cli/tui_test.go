package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
)

func testMembers(t *testing.T) ([]collapse.Group, *network.Table, *network.Table) {
	t.Helper()
	orig, err := network.New([]network.Segment{
		{COMID: 1, ToCOMID: 2, LengthKM: 0.5, TotDASqKM: 1},
		{COMID: 2, ToCOMID: 4, LengthKM: 5, TotDASqKM: 2},
		{COMID: 3, ToCOMID: 4, LengthKM: 0.2, TotDASqKM: 1},
		{COMID: 4, LengthKM: 6, TotDASqKM: 4},
	})
	require.NoError(t, err)

	res, err := collapse.Collapse(orig, collapse.Options{Thresh: 1, AddCategory: true})
	require.NoError(t, err)
	return res.Members, orig, res.Table
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewMembersModel(t *testing.T) {
	groups, orig, collapsed := testMembers(t)
	m := NewMembersModel(groups, orig, collapsed)

	require.Len(t, m.Rows, 2)
	assert.Equal(t, int64(2), m.Rows[0].Survivor)
	assert.InDelta(t, 5.5, m.Rows[0].LengthKM, 1e-9)
	require.Len(t, m.Rows[0].Parts, 2)
	assert.Equal(t, int64(1), m.Rows[0].Parts[1].COMID)
	assert.InDelta(t, 0.5, m.Rows[0].Parts[1].LengthKM, 1e-9)
	assert.Equal(t, network.CategoryHeadwater, m.Rows[0].Parts[1].Category)
	assert.Equal(t, int64(4), m.Rows[1].Survivor)
}

func TestMembersModelNavigation(t *testing.T) {
	groups, orig, collapsed := testMembers(t)
	var model tea.Model = NewMembersModel(groups, orig, collapsed)

	steps := []struct {
		key      string
		cursor   int
		expanded bool
	}{
		{"up", 0, false},
		{"down", 1, false},
		{"down", 1, false},
		{"enter", 1, true},
		{"k", 0, true},
		{"j", 1, true},
		{" ", 1, false},
	}
	for _, st := range steps {
		model, _ = model.Update(key(st.key))
		m := model.(MembersModel)
		assert.Equal(t, st.cursor, m.Cursor, "after %q", st.key)
		assert.Equal(t, st.expanded, m.Expanded, "after %q", st.key)
	}

	_, cmd := model.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMembersModelWindowSize(t *testing.T) {
	groups, orig, collapsed := testMembers(t)
	model, _ := NewMembersModel(groups, orig, collapsed).Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	assert.Equal(t, 28, model.(MembersModel).Height)

	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	assert.Equal(t, 5, model.(MembersModel).Height)
}

func TestMembersModelFocus(t *testing.T) {
	groups, orig, collapsed := testMembers(t)
	m := NewMembersModel(groups, orig, collapsed)

	assert.True(t, m.Focus(groups, 3))
	assert.Equal(t, 1, m.Cursor)
	assert.True(t, m.Expanded)

	assert.True(t, m.Focus(groups, 2))
	assert.Equal(t, 0, m.Cursor)

	assert.False(t, m.Focus(groups, 99))
}

func TestMembersModelView(t *testing.T) {
	groups, orig, collapsed := testMembers(t)
	m := NewMembersModel(groups, orig, collapsed)
	m.Expanded = true

	view := m.View()
	assert.Contains(t, view, "Merge Provenance")
	assert.Contains(t, view, "Survivor")
	assert.Contains(t, view, "headwater")
	assert.Contains(t, view, "survivor")
	assert.Contains(t, view, "[1/2]")

	empty := NewMembersModel(nil, orig, collapsed)
	assert.Contains(t, empty.View(), "No segments were merged.")
}

func TestCategorySummary(t *testing.T) {
	tests := []struct {
		name  string
		parts []memberPart
		want  string
	}{
		{"survivor only", []memberPart{{COMID: 1}}, "-"},
		{"uncategorized", []memberPart{{COMID: 1}, {COMID: 2}}, "-"},
		{
			"distinct in order",
			[]memberPart{
				{COMID: 1, Category: network.CategoryMainstem},
				{COMID: 2, Category: network.CategoryHeadwater},
				{COMID: 3, Category: network.CategoryConfluence},
				{COMID: 4, Category: network.CategoryHeadwater},
			},
			"headwater, confluence",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorySummary(tt.parts))
		})
	}
}
