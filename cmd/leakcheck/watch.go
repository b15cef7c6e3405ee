package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/nativeguard/native"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func init() {
	cmd := newWatchCmd()
	cmd.Flags().StringVar(&runMode, "mode", string(modeLeak), "leak, close or dbl")
	cmd.Flags().IntVar(&runThreads, "threads", 100, "Concurrent goroutines")
	cmd.Flags().IntVar(&runLoops, "loops", 10000, "Iterations per goroutine")
	cmd.Flags().DurationVar(&runTimeout, "collect-timeout", 10*time.Second, "How long to wait for dropped contexts to be collected")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the harness with a live view of the counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("watch needs a terminal, use run instead")
			}
			m, err := parseMode(runMode)
			if err != nil {
				return err
			}
			cfg, err := counterConfig(cmd)
			if err != nil {
				return err
			}
			h, err := newHarness(native.Kind(heapKind), cfg)
			if err != nil {
				return err
			}
			defer h.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			model := newWatchModel(ctx, h, m)
			final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			cancel()

			wm := final.(watchModel)
			if wm.err != nil && !errors.Is(wm.err, context.Canceled) {
				return wm.err
			}
			printReport(h, wm.elapsed)
			return nil
		},
	}
}

type tickMsg time.Time

type doneMsg struct {
	err     error
	elapsed time.Duration
}

type watchModel struct {
	ctx     context.Context
	h       *harness
	mode    mode
	spinner spinner.Model
	stats   stats
	started time.Time
	elapsed time.Duration
	done    bool
	err     error
}

func newWatchModel(ctx context.Context, h *harness, m mode) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return watchModel{
		ctx:     ctx,
		h:       h,
		mode:    m,
		spinner: s,
		started: time.Now(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), tick())
}

func (m watchModel) start() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		err := m.h.run(m.ctx, m.mode, runThreads, runLoops)
		elapsed := time.Since(start)
		if err == nil {
			m.h.collect(runTimeout)
		}
		return doneMsg{err: err, elapsed: elapsed}
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done {
				m.err = context.Canceled
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.stats = m.h.stats()
		return m, tick()

	case doneMsg:
		m.done = true
		m.err = msg.err
		m.elapsed = msg.elapsed
		m.stats = m.h.stats()
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("leakcheck %s", m.mode)))
	b.WriteString("\n\n")

	total := int64(runThreads) * int64(runLoops)
	row := func(label string, value any) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(fmt.Sprint(value)))
		b.WriteString("\n")
	}
	row("iterations", fmt.Sprintf("%d / %d", m.stats.Iterations, total))
	row("failures", m.stats.Failures)
	row("live", m.stats.Live)
	row("open", m.stats.Open)
	row("closed", m.stats.Closed)
	row("lost", m.stats.Lost)
	row("heap", fmt.Sprintf("%d allocs, %d frees", m.stats.HeapAllocs, m.stats.HeapFrees))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.done:
		b.WriteString(resultStyle.Render(fmt.Sprintf("done in %s", m.elapsed.Round(time.Millisecond))))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(fmt.Sprintf(" running for %s", time.Since(m.started).Round(time.Second)))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}
