package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mpetrenko/orderlens/pkg/feed"
	"github.com/mpetrenko/orderlens/pkg/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	pendingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("220"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (a *app) cmdWatch(args []string) int {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := flags.Int("interval", 5, "poll interval in seconds")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: olens watch <order_id>... [--interval N]")
		return 1
	}

	var ids []int64
	for _, arg := range flags.Args() {
		id, err := parseOrderID(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "olens: %v\n", err)
			return 1
		}
		ids = append(ids, id)
	}

	m := watchModel{
		app:      a,
		ids:      ids,
		interval: time.Duration(*interval) * time.Second,
		busy:     make(map[int64]bool),
	}
	p := tea.NewProgram(m, tea.WithAltScreen())

	// The push feed is optional; when configured, each status notice
	// triggers an immediate refresh of the affected order.
	var cancelFeed context.CancelFunc
	if a.cfg.AMQP.URL != "" {
		var ctx context.Context
		ctx, cancelFeed = context.WithCancel(context.Background())
		consumer := feed.New(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange, func(n feed.StatusNotice) {
			p.Send(noticeMsg{orderID: n.OrderID})
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				p.Send(feedDownMsg{err: err})
			}
		}()
	}

	_, err := p.Run()
	if cancelFeed != nil {
		cancelFeed()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: watch: %v\n", err)
		return 1
	}
	return 0
}

type tickMsg time.Time

type refreshedMsg struct {
	orderID int64
	err     error
}

type actionDoneMsg struct {
	orderID int64
	kind    model.ActionKind
	err     error
}

type noticeMsg struct{ orderID int64 }

type feedDownMsg struct{ err error }

// watchModel is the bubbletea state for the live view.
type watchModel struct {
	app      *app
	ids      []int64
	cursor   int
	interval time.Duration
	lastSync time.Time
	note     string
	errText  string

	// busy marks orders with an action call in flight. One outstanding
	// action per order: further action keys are ignored until the call
	// settles, and the row renders a working indicator.
	busy map[int64]bool
}

func (m watchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	for _, id := range m.ids {
		cmds = append(cmds, m.refresh(id))
	}
	return tea.Batch(cmds...)
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) refresh(orderID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.app.actionCtx()
		defer cancel()
		_, err := m.app.sess.Refresh(ctx, orderID)
		if err == nil {
			m.app.persist(orderID)
		}
		return refreshedMsg{orderID: orderID, err: err}
	}
}

// act dispatches an action unless one is already in flight for the
// order.
func (m watchModel) act(orderID int64, kind model.ActionKind) tea.Cmd {
	if m.busy[orderID] {
		return nil
	}
	m.busy[orderID] = true
	return func() tea.Msg {
		ctx, cancel := m.app.actionCtx()
		defer cancel()
		_, err := m.app.sess.Apply(ctx, orderID, kind, "")
		m.app.persist(orderID)
		return actionDoneMsg{orderID: orderID, kind: kind, err: err}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.ids)-1 {
				m.cursor++
			}
		case "s":
			return m, m.refresh(m.selected())
		case "t":
			return m, m.act(m.selected(), model.ActionTaken)
		case "r":
			return m, m.act(m.selected(), model.ActionReleased)
		case "c":
			return m, m.act(m.selected(), model.ActionCompleted)
		}

	case tickMsg:
		cmds := []tea.Cmd{m.tick()}
		for _, id := range m.ids {
			cmds = append(cmds, m.refresh(id))
		}
		return m, tea.Batch(cmds...)

	case refreshedMsg:
		if msg.err != nil {
			m.errText = fmt.Sprintf("refresh order %d: %v", msg.orderID, msg.err)
		} else {
			m.errText = ""
			m.lastSync = time.Now()
		}

	case actionDoneMsg:
		delete(m.busy, msg.orderID)
		if msg.err != nil {
			m.errText = fmt.Sprintf("%s order %d: %v", msg.kind, msg.orderID, msg.err)
		} else {
			m.errText = ""
			m.note = fmt.Sprintf("%s order %d", msg.kind, msg.orderID)
		}

	case noticeMsg:
		for _, id := range m.ids {
			if id == msg.orderID {
				return m, m.refresh(id)
			}
		}

	case feedDownMsg:
		m.errText = fmt.Sprintf("push feed lost (%v), polling only", msg.err)
	}
	return m, nil
}

func (m watchModel) selected() int64 {
	if m.cursor >= len(m.ids) {
		return m.ids[0]
	}
	return m.ids[m.cursor]
}

func (m watchModel) View() string {
	s := titleStyle.Render("olens watch") + "  " +
		dimStyle.Render(fmt.Sprintf("as %s (%s)", m.app.sess.Actor().Name, m.app.sess.Actor().Role)) + "\n\n"

	for i, id := range m.ids {
		line := m.orderLine(id)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += "\n"
	if m.note != "" {
		s += pendingStyle.Render(m.note) + "\n"
	}
	if m.errText != "" {
		s += errStyle.Render(m.errText) + "\n"
	}
	if !m.lastSync.IsZero() {
		s += dimStyle.Render("synced "+m.lastSync.Format("15:04:05")) + "\n"
	}
	s += dimStyle.Render("t take · r release · c complete · s sync · q quit")
	return s
}

func (m watchModel) orderLine(id int64) string {
	view, ok := m.app.sess.EffectiveView(id)
	if !ok {
		return fmt.Sprintf("order %-8d loading...", id)
	}
	line := fmt.Sprintf("order %-8d %-18s %s", id, view.Status, assigneeLabel(m.app, view))
	if m.busy[id] {
		line += "  " + pendingStyle.Render("[working...]")
	} else if e, ok := m.app.sess.Ledger().Get(id); ok {
		line += "  " + pendingStyle.Render(fmt.Sprintf("[%s pending]", e.Action))
	}
	return line
}
