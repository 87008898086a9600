package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/newhook/ssdsim/ftl"
	"github.com/newhook/ssdsim/nvme"
	"github.com/newhook/ssdsim/ssd"
	"github.com/newhook/ssdsim/workload"
)

// partState holds a snapshot of one partition for change detection
type partState struct {
	free    int
	victim  int
	full    int
	credits int
	gc      uint64
	copied  uint64
}

// Add tick command for workload stepping
type stepTick struct{}

func doStep() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return stepTick{}
	})
}

// Monitor represents the UI state
type Monitor struct {
	runner *workload.Runner
	gen    *workload.Generator

	paused bool
	width  int
	height int

	stepsPerTick int
	lastState    []partState // previous partition state for change detection

	events []string // recent notable transitions

	gotoInput   textinput.Model
	showingGoto bool
}

// Define some basic styles
var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	changed   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}

	titleStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	partStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1).
			Width(56)

	changedStyle = lipgloss.NewStyle().
			Foreground(changed).
			Bold(true)

	deviceStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(special).
			Padding(1).
			Width(40)

	victimStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1).
			Width(40)

	eventStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(special).
			Padding(1).
			Width(56)
)

// Initialize the monitor
func NewMonitor(runner *workload.Runner, gen *workload.Generator) *Monitor {
	ti := textinput.New()
	ti.Placeholder = "Enter LBA (e.g. 204800)"
	ti.CharLimit = 12
	ti.Width = 14

	m := &Monitor{
		runner:       runner,
		gen:          gen,
		paused:       true,
		stepsPerTick: 64,
		gotoInput:    ti,
	}
	m.captureState()
	return m
}

// Helper function to capture the current partition state
func (m *Monitor) captureState() {
	parts := m.runner.NS.Partitions()
	if m.lastState == nil {
		m.lastState = make([]partState, len(parts))
	}
	for i, f := range parts {
		m.lastState[i] = partState{
			free:    f.FreeLines(),
			victim:  f.VictimLines(),
			full:    f.FullLines(),
			credits: f.WriteCredits(),
			gc:      f.GCCount(),
			copied:  f.GCCopiedPages(),
		}
	}
}

func (m *Monitor) step(n int) {
	before := make([]uint64, len(m.runner.NS.Partitions()))
	for i, f := range m.runner.NS.Partitions() {
		before[i] = f.GCCount()
	}

	for i := 0; i < n; i++ {
		m.runner.Submit(m.gen.Next())
	}

	for i, f := range m.runner.NS.Partitions() {
		if f.GCCount() > before[i] {
			m.pushEvent(fmt.Sprintf("part %d: foreground GC #%d (free=%d)",
				i, f.GCCount(), f.FreeLines()))
		}
	}
}

func (m *Monitor) pushEvent(s string) {
	m.events = append(m.events, s)
	if len(m.events) > 8 {
		m.events = m.events[len(m.events)-8:]
	}
}

// Implementation of tea.Model interface
func (m Monitor) Init() tea.Cmd {
	return nil
}

// Handle keyboard input
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepTick:
		if m.paused {
			return m, nil
		}

		m.captureState()
		m.step(m.stepsPerTick)
		return m, doStep()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.showingGoto {
			switch msg.Type {
			case tea.KeyEnter:
				if lba, err := strconv.ParseUint(m.gotoInput.Value(), 10, 64); err == nil {
					m.captureState()
					m.runner.Submit(&nvme.Command{
						Opcode: nvme.CmdWrite,
						SLBA:   lba,
						Length: 7, // one 4 KiB page
					})
					m.pushEvent(fmt.Sprintf("write LBA %d", lba))
				}
				m.showingGoto = false
				return m, nil
			case tea.KeyEsc:
				m.showingGoto = false
				return m, nil
			}
			var cmd tea.Cmd
			m.gotoInput, cmd = m.gotoInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "g":
			m.showingGoto = true
			m.gotoInput.Focus()
			return m, textinput.Blink
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			// Single batch while paused
			if m.paused {
				m.captureState()
				m.step(m.stepsPerTick)
			}
		case "f":
			m.captureState()
			ret := m.runner.Submit(&workload.FlushCommand)
			m.pushEvent(fmt.Sprintf("flush -> %dms", ret.NsecsTarget/1_000_000))
		case "p":
			m.paused = !m.paused
			if !m.paused {
				return m, doStep()
			}
		case "+":
			m.stepsPerTick *= 2
		case "-":
			if m.stepsPerTick > 1 {
				m.stepsPerTick /= 2
			}
		}
	}
	return m, nil
}

// Format a counter with highlighting if changed
func formatCount(name string, current, last int) string {
	value := fmt.Sprintf("%s:%5d", name, current)
	if current != last {
		return changedStyle.Render(value)
	}
	return value
}

func (m Monitor) formatPartitions() string {
	var result strings.Builder
	for i, f := range m.runner.NS.Partitions() {
		last := m.lastState[i]
		result.WriteString(fmt.Sprintf("part %d  ", i))
		result.WriteString(formatCount("free", f.FreeLines(), last.free))
		result.WriteString("  ")
		result.WriteString(formatCount("victim", f.VictimLines(), last.victim))
		result.WriteString("  ")
		result.WriteString(formatCount("full", f.FullLines(), last.full))
		result.WriteString("\n        ")
		result.WriteString(formatCount("credits", f.WriteCredits(), last.credits))
		result.WriteString("  ")
		result.WriteString(formatCount("gc", int(f.GCCount()), int(last.gc)))
		result.WriteString("  ")
		result.WriteString(formatCount("copied", int(f.GCCopiedPages()), int(last.copied)))
		result.WriteString("\n")
	}
	return result.String()
}

func (m Monitor) formatDevice() string {
	ns := m.runner.NS
	wbuf := ns.WriteBuffer()
	var result strings.Builder
	result.WriteString(fmt.Sprintf("sim time : %d ms\n", m.runner.SimTime/1_000_000))
	result.WriteString(fmt.Sprintf("writes   : %d\n", m.runner.Writes))
	result.WriteString(fmt.Sprintf("reads    : %d\n", m.runner.Reads))
	result.WriteString(fmt.Sprintf("retries  : %d\n", m.runner.Retries))
	result.WriteString(fmt.Sprintf("wbuf free: %d / %d\n", wbuf.Remaining(), wbuf.Size()))
	result.WriteString(fmt.Sprintf("pending  : %d releases\n", m.runner.Disp.Pending()))
	if m.runner.Writes > 0 {
		result.WriteString(fmt.Sprintf("avg write: %d ns\n", m.runner.WriteNsecs/m.runner.Writes))
	}
	if m.runner.Reads > 0 {
		result.WriteString(fmt.Sprintf("avg read : %d ns\n", m.runner.ReadNsecs/m.runner.Reads))
	}
	return result.String()
}

// Show the head of partition 0's victim queue
func (m Monitor) formatVictims() string {
	var result strings.Builder
	victims := m.runner.NS.Partitions()[0].Victims(8)
	if len(victims) == 0 {
		return "empty\n"
	}
	for i, line := range victims {
		marker := "  "
		if i == 0 {
			marker = "> "
		}
		result.WriteString(fmt.Sprintf("%sline %4d  vpc %5d  ipc %5d\n",
			marker, line.ID, line.VPC, line.IPC))
	}
	return result.String()
}

func (m Monitor) formatEvents() string {
	if len(m.events) == 0 {
		return "none yet\n"
	}
	return strings.Join(m.events, "\n") + "\n"
}

func (m Monitor) View() string {
	parts := partStyle.Render(fmt.Sprintf(
		"Partitions\n\n%s",
		m.formatPartitions(),
	))

	device := deviceStyle.Render(fmt.Sprintf(
		"Device\n\n%s",
		m.formatDevice(),
	))

	victims := victimStyle.Render(fmt.Sprintf(
		"Victim queue (part 0)\n\n%s",
		m.formatVictims(),
	))

	events := eventStyle.Render(fmt.Sprintf(
		"Events\n\n%s",
		m.formatEvents(),
	))

	left := lipgloss.JoinVertical(
		lipgloss.Left,
		parts,
		events,
	)

	right := lipgloss.JoinVertical(
		lipgloss.Left,
		device,
		victims,
	)

	var help string
	if !m.paused {
		help = titleStyle.Render(
			"p: pause • +/-: batch size • q: quit",
		)
	} else {
		help = titleStyle.Render(
			"s: step batch • p: run • f: flush • g: write LBA • +/-: batch size • q: quit",
		)
	}

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		lipgloss.PlaceHorizontal(3, lipgloss.Left, right),
	)

	// Add goto dialog if active
	if m.showingGoto {
		dialog := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1).
			Width(30).
			Render(
				"Write one page at LBA:\n\n" +
					m.gotoInput.View(),
			)

		return lipgloss.JoinVertical(
			lipgloss.Center,
			content,
			help,
			dialog,
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		content,
		help,
	)
}

func main() {
	// Command line flags
	capacityMB := flag.Uint64("c", 256, "Physical capacity in MiB")
	partitions := flag.Int("n", 4, "FTL partitions")
	gcMode := flag.Int("gc", 0, "GC mode: 0 greedy, 1 cost-benefit, 2 random")
	pattern := flag.String("w", workload.PatternMixed, "Workload pattern: seq, rand, overwrite, mixed")
	seed := flag.Int64("seed", 1, "Workload RNG seed")
	flag.Parse()

	disp := &workload.Dispatcher{}
	cfg := &ftl.CoreConfig{
		GCMode: *gcMode,
		Rand:   rand.New(rand.NewSource(*seed)),
	}

	ns, err := ftl.NewNamespace(1, ssd.Samsung970Pro, *capacityMB*ssd.MB, *partitions, cfg, disp)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	runner := workload.NewRunner(ns, disp)
	gen := workload.NewGenerator(ns, *pattern, 4*ssd.KB, rand.New(rand.NewSource(*seed)))

	p := tea.NewProgram(NewMonitor(runner, gen))
	if err := p.Start(); err != nil {
		fmt.Printf("Error running program: %v", err)
	}
}
