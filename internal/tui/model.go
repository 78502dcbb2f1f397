package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finqa/internal/domain"
)

// QAPort is the TUI-facing subset of the QA pipeline.
type QAPort interface {
	Answer(ctx context.Context, question string) (domain.AnswerResult, error)
}

// Model is the Bubble Tea model for the interactive QA session.
type Model struct {
	pipeline     QAPort
	input        textinput.Model
	viewport     viewport.Model
	result       *domain.AnswerResult
	banner       string
	status       string
	cursor       int
	ready        bool
	lastQuestion string
}

// New creates a new TUI model instance.
func New(pipeline QAPort, banner string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{pipeline: pipeline, input: ti, viewport: vp, banner: banner, status: "Ready. Ask away."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and question boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + banner
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentPoint())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				res, err := m.pipeline.Answer(context.Background(), q)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.result = nil
				} else {
					m.status = answerStatus(res)
					m.result = &res
					m.cursor = 0
					m.lastQuestion = q
				}
				m.viewport.SetContent(m.renderCurrentPoint())
				return m, nil
			}
		case "down":
			if m.result != nil && len(m.result.KnowledgePoints) > 0 {
				m.cursor = (m.cursor + 1) % len(m.result.KnowledgePoints)
				m.viewport.SetContent(m.renderCurrentPoint())
				return m, nil
			}
		case "up":
			if m.result != nil && len(m.result.KnowledgePoints) > 0 {
				m.cursor = (m.cursor - 1 + len(m.result.KnowledgePoints)) % len(m.result.KnowledgePoints)
				m.viewport.SetContent(m.renderCurrentPoint())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and the current knowledge point.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Financial Knowledge QA")
	banner := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.banner)
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + banner + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderCurrentPoint() string {
	if m.result == nil || len(m.result.KnowledgePoints) == 0 {
		return "No knowledge points yet."
	}
	title := fmt.Sprintf("Knowledge point %d/%d", m.cursor+1, len(m.result.KnowledgePoints))
	if !m.result.Metadata.IsSummary {
		if scores := m.result.Metadata.SearchScores; m.cursor < len(scores) {
			title += fmt.Sprintf("  score=%.3f", scores[m.cursor])
		}
	}
	body := highlightBestSentence(m.result.KnowledgePoints[m.cursor], m.lastQuestion)
	return title + "\n\n" + body
}

func answerStatus(res domain.AnswerResult) string {
	s := fmt.Sprintf("intent=%s points=%d", res.Intent, len(res.KnowledgePoints))
	if len(res.Metadata.SubQuestions) > 1 {
		s += fmt.Sprintf(" sub_questions=%d", len(res.Metadata.SubQuestions))
	}
	if n := len(res.Metadata.RetrievalErrors); n > 0 {
		s += fmt.Sprintf(" degraded=%d", n)
	}
	return s
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe       = regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]?`)
)

// highlightBestSentence emphasizes the knowledge point sentence sharing the
// most tokens with the asked question.
func highlightBestSentence(text, question string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(question)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(questionTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := questionTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
