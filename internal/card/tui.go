package card

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/profilecard/presence/internal/presence"
)

type eventMsg presence.Event

type closedMsg struct{}

type tickMsg time.Time

// Model is the live card shown by watch --tui.
type Model struct {
	renderer *Renderer
	updates  <-chan presence.Event
	spinner  spinner.Model
	view     View
	quitting bool
}

// NewModel creates a model that renders events from updates.
func NewModel(updates <-chan presence.Event, renderer *Renderer) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		renderer: renderer,
		updates:  updates,
		spinner:  s,
		view:     View{State: presence.Disconnected.String(), Now: time.Now()},
	}
}

// Card returns the card state the model currently shows.
func (m Model) Card() View { return m.view }

// Init starts the spinner, the event pump and the once-a-second clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.updates), tick())
}

// Update handles keys, window size, presence events and ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		return m, nil
	case tea.WindowSizeMsg:
		m.renderer.WithWidth(min(msg.Width, 64))
		return m, nil
	case eventMsg:
		m.view = Apply(m.view, presence.Event(msg))
		return m, waitForEvent(m.updates)
	case closedMsg:
		m.quitting = true
		return m, tea.Quit
	case tickMsg:
		m.view.Now = time.Time(msg)
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// View renders the card, or a spinner until the first snapshot.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.view.Snapshot == nil && !m.view.NotTracked() {
		return m.spinner.View() + " Connecting to Lanyard (" + m.view.State + ")\n"
	}

	return m.renderer.Render(m.view) + "\n  q to quit\n"
}

// Apply folds one presence event into v.
func Apply(v View, ev presence.Event) View {
	switch ev.Kind {
	case presence.EventSnapshot:
		v.Snapshot = ev.Snapshot
		v.Now = ev.Snapshot.ReceivedAt
	case presence.EventTracked:
		tracked := ev.Tracked
		v.Tracked = &tracked
		v.Reason = ev.Reason
	case presence.EventState:
		v.State = ev.State.String()
	}

	return v
}

func waitForEvent(updates <-chan presence.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-updates
		if !ok {
			return closedMsg{}
		}

		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
