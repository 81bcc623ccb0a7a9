package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// MembersModel - Interactive merge provenance browser
// =============================================================================

// memberPart is one segment of a group with its length before the collapse.
type memberPart struct {
	COMID    int64
	LengthKM float64
	Category network.Category
}

// memberRow is one survivor and the segments merged into it.
type memberRow struct {
	Survivor int64
	LengthKM float64 // survivor length after the collapse
	Parts    []memberPart
}

// MembersModel is the bubbletea model for browsing member groups.
type MembersModel struct {
	Rows     []memberRow
	Cursor   int
	Height   int
	Offset   int
	Expanded bool
}

// NewMembersModel builds the browser rows from a collapse result. orig
// supplies the lengths before the collapse; collapsed supplies categories
// and survivor lengths.
func NewMembersModel(groups []collapse.Group, orig, collapsed *network.Table) MembersModel {
	rows := make([]memberRow, 0, len(groups))
	for _, g := range groups {
		row := memberRow{Survivor: g.Survivor}
		if s, ok := collapsed.Get(g.Survivor); ok {
			row.LengthKM = s.LengthKM
		}
		for _, id := range g.Members {
			part := memberPart{COMID: id}
			if s, ok := orig.Get(id); ok {
				part.LengthKM = s.LengthKM
			}
			if s, ok := collapsed.Get(id); ok {
				part.Category = s.Category
			}
			row.Parts = append(row.Parts, part)
		}
		rows = append(rows, row)
	}
	return MembersModel{Rows: rows, Height: 15}
}

// Focus moves the cursor to the group containing id. It reports false if
// id was not merged.
func (m *MembersModel) Focus(groups []collapse.Group, id int64) bool {
	survivor, ok := collapse.Survivors(groups)[id]
	if !ok {
		return false
	}
	for i, r := range m.Rows {
		if r.Survivor == survivor {
			m.Cursor = i
			m.Offset = max(0, i-m.Height/2)
			m.Expanded = true
			return true
		}
	}
	return false
}

func (m MembersModel) Init() tea.Cmd {
	return nil
}

func (m MembersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			m.Expanded = !m.Expanded
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-12, 5)
	}
	return m, nil
}

func (m MembersModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Merge Provenance"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	if len(m.Rows) == 0 {
		b.WriteString(listNormalStyle.Render("No segments were merged."))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Rows))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			fmt.Sprint(r.Survivor),
			fmt.Sprint(len(r.Parts) - 1),
			fmt.Sprintf("%.3f", r.LengthKM),
			categorySummary(r.Parts),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Survivor", "Merged", "Length km", "Rules").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if col == 4 {
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n")

	if m.Expanded {
		b.WriteString("\n")
		for i, p := range m.Rows[m.Cursor].Parts {
			label := string(p.Category)
			if i == 0 {
				label = "survivor"
			}
			fmt.Fprintf(&b, "  %s %-12d %s %s\n",
				StyleDim.Render(iconArrow),
				p.COMID,
				StyleNumber.Render(fmt.Sprintf("%8.3f km", p.LengthKM)),
				listDimStyle.Render(label))
		}
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))

	return b.String()
}

// categorySummary lists the distinct rules that removed the members of a
// group, in first-seen order.
func categorySummary(parts []memberPart) string {
	var cats []string
	seen := make(map[network.Category]bool)
	for _, p := range parts[1:] {
		if p.Category == network.CategoryNone || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		cats = append(cats, string(p.Category))
	}
	if len(cats) == 0 {
		return "-"
	}
	return strings.Join(cats, ", ")
}
