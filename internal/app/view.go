package app

import (
	"fmt"
	"strings"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/playback"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Status bar
	sections = append(sections, m.renderStatusBar())

	// Divider
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	// Main content
	sections = append(sections, m.renderMainContent())

	// Divider
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	// Error bar
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	// Footer
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("PAPER READER")

	var docInfo string
	if m.doc != nil {
		docInfo = ui.DimStyle.Render(fmt.Sprintf(" — %s (%s)", m.doc.Name, humanize.Bytes(uint64(m.doc.Size))))
	}

	var health string
	switch {
	case m.healthErr != "":
		health = "  " + ui.UnhealthyStyle.Render("● backend unreachable")
	case m.health != nil:
		label := fmt.Sprintf("● %s", m.health.Device)
		if !m.health.TTSModelLoaded {
			label += " (TTS loading)"
		}
		health = "  " + ui.HealthyStyle.Render(label)
	}

	return title + docInfo + health
}

func (m Model) renderStatusBar() string {
	var badge string
	switch m.seq.State() {
	case playback.Playing:
		badge = ui.PlayingBadgeStyle.Render("▶ PLAYING")
	case playback.Advancing:
		badge = ui.PlayingBadgeStyle.Render("» NEXT")
	case playback.Paused:
		badge = ui.PausedBadgeStyle.Render("❚❚ PAUSED")
	case playback.Ready:
		badge = ui.PausedBadgeStyle.Render("■ READY")
	case playback.Finished:
		badge = ui.IdleBadgeStyle.Render("■ FINISHED")
	default:
		switch {
		case m.failed:
			badge = ui.ErrorStyle.Render("✕ FAILED")
		case m.submitting || m.poller.Active():
			badge = ui.SpinnerStyle.Render("⟳ PROCESSING")
		default:
			badge = ui.IdleBadgeStyle.Render("○ IDLE")
		}
	}

	var speed string
	if m.seq.Catalog() != nil {
		speed = "  " + ui.StatusStyle.Render(fmt.Sprintf("%.2gx", m.seq.Speed()))
	}

	var job string
	if m.jobID != "" {
		job = "  " + ui.DimStyle.Render("job "+m.jobID)
	}

	return badge + speed + job
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + dividers(2) + error(1) + footer(1)
	reserved := 6
	return max(5, m.height-reserved)
}

func (m Model) renderMainContent() string {
	height := m.contentHeight()

	var lines []string
	switch {
	case m.prompting:
		lines = m.renderPrompt()
	case m.showHistory:
		lines = m.renderHistory()
	case m.seq.Catalog() != nil:
		lines = m.renderPlayback()
	case m.submitting || m.poller.Active() || m.failed:
		lines = m.renderProcessing()
	case m.doc != nil:
		lines = []string{
			"",
			"  " + ui.PanelTitleStyle.Render(m.doc.Name),
			"",
			ui.DimStyle.Render("  Press p to process, o to open the document"),
		}
	default:
		lines = []string{
			"",
			ui.DimStyle.Render("  Press u to choose a PDF"),
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPrompt() []string {
	return []string{
		"",
		ui.PanelTitleStyle.Render("  OPEN PDF"),
		"",
		"  " + ui.PromptStyle.Render("> ") + m.input + "▌",
		"",
		ui.DimStyle.Render("  Enter to select, Esc to cancel"),
	}
}

func (m Model) renderHistory() []string {
	lines := []string{ui.PanelTitleStyle.Render(fmt.Sprintf("  RECENT JOBS (%d)", len(m.history)))}
	if len(m.history) == 0 {
		return append(lines, ui.DimStyle.Render("  No jobs yet..."))
	}

	width := max(20, m.width-4)
	for i, job := range m.history {
		status := job.Phase
		if job.Completed() {
			status = fmt.Sprintf("%d segments, %d pages", job.SegmentCount, job.TotalPages)
		}
		text := fmt.Sprintf("%s  %s  %s", job.DocumentName(), status, humanize.Time(job.SubmittedAt))

		var line string
		if i == m.selectedJob {
			line = ui.SelectedStyle.Render("> " + text)
		} else {
			line = "  " + text
		}
		lines = append(lines, truncateToWidth(line, width))
	}
	return lines
}

func (m Model) renderProcessing() []string {
	stage := m.stage
	if stage == "" {
		stage = stageLabel(m.phase)
	}
	if stage == "" {
		stage = "Waiting for backend..."
	}

	lines := []string{
		"",
		"  " + ui.StageStyle.Render(stage),
		"  " + renderBar(m.progress, max(10, min(50, m.width-12))) + fmt.Sprintf(" %3d%%", m.progress),
	}
	if m.message != "" {
		lines = append(lines, "", ui.DimStyle.Render("  "+m.message))
	}
	if m.failed {
		lines = append(lines, "", ui.DimStyle.Render("  Press x to reset, p to try again"))
	}
	return lines
}

func (m Model) renderPlayback() []string {
	cat := m.seq.Catalog()
	index := m.seq.Index()
	seg, _ := cat.Segment(index)

	header := fmt.Sprintf("Segment %d of %d · Page %d of %d", index+1, cat.Len(), seg.Page, cat.MaxPage())
	position := int(m.seq.Position())

	lines := []string{
		"  " + ui.PanelTitleStyle.Render(header),
		"  " + renderBar(position, max(10, min(60, m.width-12))) + fmt.Sprintf(" %3d%%", position),
		"",
	}

	for _, wl := range wrapText(seg.Text, max(10, m.width-4)) {
		lines = append(lines, "  "+wl)
	}

	if seg.HasFigureReference && len(seg.FigureReferences) > 0 {
		lines = append(lines, "", "  "+ui.FigureStyle.Render("References: "+strings.Join(seg.FigureReferences, ", ")))
	}
	return lines
}

func renderBar(percent, width int) string {
	filled := percent * width / 100
	filled = min(width, max(0, filled))
	return ui.BarFilledStyle.Render(strings.Repeat("█", filled)) +
		ui.BarEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	key := func(k, desc string) {
		parts = append(parts, ui.FooterKeyStyle.Render(k)+ui.FooterDescStyle.Render(" "+desc))
	}

	if m.prompting {
		key("Enter", "Select")
		key("Esc", "Cancel")
		return strings.Join(parts, "  ")
	}

	key("u", "Open PDF")
	if m.doc != nil && m.seq.Catalog() == nil && !m.submitting && !m.poller.Active() {
		key("p", "Process")
	}
	if m.docURL != "" {
		key("o", "View")
	}
	if m.seq.Catalog() != nil {
		if m.seq.State() == playback.Playing || m.seq.State() == playback.Advancing {
			key("Space", "Pause")
		} else {
			key("Space", "Play")
		}
		key("1-6/+-", "Speed")
		key("←→", "Seek")
	}
	if m.doc != nil || m.jobID != "" {
		key("x", "Reset")
	}
	if m.store != nil {
		key("h", "History")
	}
	key("q", "Quit")

	return strings.Join(parts, "  ")
}

// stageLabel is the text shown for a phase when the backend sent no stage.
func stageLabel(p backend.Phase) string {
	switch p {
	case backend.PhaseQueued:
		return "Queued"
	case backend.PhaseRunning:
		return "Processing"
	case backend.PhaseCompleted:
		return "Complete"
	case backend.PhaseFailed:
		return "Error"
	}
	return ""
}

// Helpers

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
