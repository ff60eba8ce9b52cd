package main

import (
	"fmt"
	"strconv"
	"strings"

	btable "github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tetratelabs/wazero/api"
	"github.com/urfave/cli/v2"

	"github.com/wippyai/wasi-executor/native"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	ioStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98")).
		Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var opsHeaders = []string{"ID", "NAME", "PARAMS", "RESULT", "IO"}

const ioColumn = 4

func opsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ops",
		Usage: "list the operation table",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "browse operations in a terminal UI",
			},
		},
		Action: func(c *cli.Context) error {
			rows := opsRows(native.Preview1())
			if c.Bool("interactive") {
				_, err := tea.NewProgram(newOpsModel(rows),
					tea.WithInput(c.App.Reader),
					tea.WithOutput(c.App.Writer)).Run()
				return err
			}
			_, err := fmt.Fprintln(c.App.Writer, renderOps(rows))
			return err
		},
	}
}

// opsRows renders one row per operation in id order.
func opsRows(cat *native.Catalog) [][]string {
	ops := cat.Operations()
	rows := make([][]string, len(ops))
	for i := range ops {
		op := &ops[i]
		result := "-"
		if !op.Exits() {
			result = valueTypes(op.Results)
		}
		rows[i] = []string{
			strconv.FormatUint(uint64(op.ID), 10),
			op.Name,
			valueTypes(op.Params),
			result,
			ioShape(op.IO),
		}
	}
	return rows
}

func valueTypes(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = native.ValueTypeName(t)
	}
	return strings.Join(names, " ")
}

func ioShape(s *native.IOShape) string {
	if s == nil {
		return ""
	}
	offset := "-"
	if s.Offset >= 0 {
		offset = strconv.Itoa(s.Offset)
	}
	return fmt.Sprintf("iovs=%d len=%d offset=%s count=%d", s.IOVs, s.IOVsLen, offset, s.Count)
}

func renderOps(rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))).
		Headers(opsHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == ioColumn:
				return ioStyle
			}
			return cellStyle
		})
	title := titleStyle.Render(fmt.Sprintf("%s (%d operations)", native.ModuleName, len(rows)))
	return title + "\n" + t.String()
}

type opsModel struct {
	table  btable.Model
	rows   [][]string
	detail string
}

func newOpsModel(rows [][]string) *opsModel {
	widths := []int{4, 4, 6, 6, 2}
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], len(cell))
		}
	}
	columns := make([]btable.Column, len(opsHeaders))
	for i, h := range opsHeaders {
		columns[i] = btable.Column{Title: h, Width: widths[i]}
	}
	btRows := make([]btable.Row, len(rows))
	for i, r := range rows {
		btRows[i] = btable.Row(r)
	}

	t := btable.New(
		btable.WithColumns(columns),
		btable.WithRows(btRows),
		btable.WithFocused(true),
		btable.WithHeight(16),
	)
	styles := btable.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	t.SetStyles(styles)
	return &opsModel{table: t, rows: rows}
}

func (m *opsModel) Init() tea.Cmd { return nil }

func (m *opsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "enter":
			m.detail = m.describe(m.table.Cursor())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *opsModel) describe(i int) string {
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	r := m.rows[i]
	s := fmt.Sprintf("%s #%s (%s) -> %s", r[1], r[0], r[2], r[3])
	if r[ioColumn] != "" {
		s += "\nretried on partial I/O: " + r[ioColumn]
	}
	return s
}

func (m *opsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(native.ModuleName))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.detail != "" {
		b.WriteString("\n")
		b.WriteString(m.detail)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("\n↑/↓ navigate • enter details • q quit"))
	return b.String()
}
