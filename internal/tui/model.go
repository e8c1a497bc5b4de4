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

	"eduscribe/internal/domain"
)

// SearchPort is the TUI-facing subset of the lecture pipeline.
type SearchPort interface {
	Search(ctx context.Context, lectureID, query string, topK int) ([]domain.SearchResult, error)
}

type mode int

const (
	modeSearch mode = iota
	modeNotes
)

// Model lets the user query a lecture's retrieval corpus and page through
// the assembled final notes. Tab switches between the two views.
type Model struct {
	service   SearchPort
	lectureID string
	title     string
	notes     string

	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	status    string
	cursor    int
	mode      mode
	ready     bool
	lastQuery string
}

// New builds the model for one lecture. notes may be empty when the
// lecture has not been finished yet.
func New(service SearchPort, lectureID, title, notes string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:   service,
		lectureID: lectureID,
		title:     title,
		notes:     notes,
		input:     ti,
		viewport:  vp,
		status:    "Type to search the lecture corpus. Tab shows the notes.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2
		totalFooterLines := 1
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.content())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeSearch {
				m.mode = modeNotes
				m.status = "Final notes. Tab returns to search."
			} else {
				m.mode = modeSearch
				m.status = "Type to search the lecture corpus. Tab shows the notes."
			}
			m.viewport.SetContent(m.content())
			return m, nil
		case "enter":
			if m.mode != modeSearch {
				break
			}
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				res, err := m.service.Search(context.Background(), m.lectureID, q, 10)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.results = nil
				} else {
					m.status = fmt.Sprintf("Results for %q", q)
					m.results = res
					m.cursor = 0
					m.lastQuery = q
				}
				m.viewport.SetContent(m.content())
				return m, nil
			}
		case "down":
			if m.mode == modeNotes {
				m.viewport.LineDown(1)
				return m, nil
			}
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.content())
				return m, nil
			}
		case "up":
			if m.mode == modeNotes {
				m.viewport.LineUp(1)
				return m, nil
			}
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.content())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("EduScribe")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.title)
	body := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + subtitle + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) content() string {
	if m.mode == modeNotes {
		if strings.TrimSpace(m.notes) == "" {
			return "No final notes yet. Finish the lecture first."
		}
		return m.notes
	}
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f  doc=%s",
		m.cursor+1, len(m.results), r.Score, r.DocumentID)
	return title + "\n\n" + highlightBestSentence(r.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasizes the sentence sharing the most tokens
// with the query, so a long chunk still shows why it matched.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
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

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
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
