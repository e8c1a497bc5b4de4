package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"eduscribe/internal/domain"
	"eduscribe/internal/logger"
)

const (
	noteSeparator = "\n\n---\n\n"

	outlineTemperature  = 0.15
	outlineMaxTokens    = 150
	enhanceTemperature  = 0.2
	enhanceMaxTokens    = 500
	glossaryTemperature = 0.15
	glossaryMaxTokens   = 250
	takeawayTemperature = 0.15
	takeawayMaxTokens   = 200

	maxOutlineSections   = 4
	maxOutlineHeadings   = 15
	maxFormulasPerSect   = 5
	maxGlossaryTerms     = 6
	maxTakeaways         = 4
	enhanceFallbackChars = 800

	placeholderTitle   = "Lecture Notes"
	placeholderSection = "Main Content"
)

var (
	headingRe   = regexp.MustCompile(`(?m)^##\s+(.+)$`)
	displayMath = regexp.MustCompile(`(?s)\$\$(.*?)\$\$`)
	inlineMath  = regexp.MustCompile(`(?s)\\\((.*?)\\\)`)
	boldTermRe  = regexp.MustCompile(`\*\*([A-Z][a-zA-Z\s]{2,20})\*\*`)
	bulletRe    = regexp.MustCompile(`(?m)^[-•]\s*(.+)$`)
	slugRe      = regexp.MustCompile(`[^a-z0-9]+`)
)

// FinalResult is the single lecture-level synthesis outcome. Degraded is
// set when any stage fell back; FallbackReasons records why, per stage.
type FinalResult struct {
	Success         bool
	LectureID       string
	Title           string
	Markdown        string
	Sections        []domain.Section
	Glossary        map[string]string
	Takeaways       []string
	Degraded        bool
	FallbackReasons []string
}

// Final assembles comprehensive notes out of all accumulated structured
// notes for a lecture: outline, enhanced sections, formulas, glossary and
// takeaways. Every model-backed step has a deterministic fallback, so the
// synthesis always produces a document.
type Final struct {
	model domain.CompletionModel // nil means every stage takes its fallback
	log   *logger.Logger
}

func NewFinal(model domain.CompletionModel, log *logger.Logger) *Final {
	return &Final{model: model, log: log.With("component", "final_synth")}
}

// Synthesize runs the full final-notes state machine over one invocation.
func (s *Final) Synthesize(ctx context.Context, lectureID string, notes []string, ragContext []string) FinalResult {
	if len(notes) == 0 {
		return FinalResult{
			Success:   false,
			LectureID: lectureID,
			Title:     "No Notes",
			Markdown:  "No notes were generated during this lecture.",
			Glossary:  map[string]string{},
		}
	}

	result := FinalResult{Success: true, LectureID: lectureID}
	degrade := func(stage string, reason string) {
		result.Degraded = true
		result.FallbackReasons = append(result.FallbackReasons, stage+": "+reason)
	}

	combined := strings.Join(notes, noteSeparator)

	title, sectionNames, reason := s.buildOutline(ctx, combined)
	if reason != "" {
		degrade("outline", reason)
	}
	result.Title = title

	blocks := strings.Split(combined, "---")
	for _, name := range sectionNames {
		content := findRelevantContent(name, blocks)
		enhanced, reason := s.enhanceSection(ctx, name, content, ragContext)
		if reason != "" {
			degrade("section "+name, reason)
		}
		result.Sections = append(result.Sections, domain.Section{
			Title:    name,
			Content:  enhanced,
			Formulas: ExtractFormulas(enhanced),
		})
	}

	glossary, reason := s.buildGlossary(ctx, combined, ragContext)
	if reason != "" {
		degrade("glossary", reason)
	}
	result.Glossary = glossary

	takeaways, reason := s.extractTakeaways(ctx, result.Sections)
	if reason != "" {
		degrade("takeaways", reason)
	}
	result.Takeaways = takeaways

	result.Markdown = AssembleMarkdown(result.Title, result.Sections, result.Glossary, result.Takeaways)
	return result
}

// buildOutline produces the document title and section names. The second
// return value is the fallback reason, empty when the model succeeded.
func (s *Final) buildOutline(ctx context.Context, combined string) (string, []string, string) {
	unique := uniqueHeadings(combined)

	reason := "model not configured"
	if s.model != nil {
		title, sections, err := s.modelOutline(ctx, unique)
		if err == nil {
			return title, sections, ""
		}
		s.log.Warn("outline generation failed, using heading fallback", "error", err)
		reason = err.Error()
	}

	title := placeholderTitle
	if len(unique) > 0 {
		title = unique[0]
	}
	sections := []string{placeholderSection}
	if len(unique) > 1 {
		sections = unique[1:]
		if len(sections) > 3 {
			sections = sections[:3]
		}
	}
	return title, sections, reason
}

func (s *Final) modelOutline(ctx context.Context, headings []string) (string, []string, error) {
	if len(headings) > maxOutlineHeadings {
		headings = headings[:maxOutlineHeadings]
	}
	system := "You are an expert at organizing educational content. Create a clean, concise outline. Merge similar topics. No repetition."
	user := fmt.Sprintf(`Lecture headings (may have duplicates):

%s

Create an outline with:
1. ONE concise title (4-6 words, topic-focused)
2. 2-4 main sections (no duplicates, no "Lecture Notes")

Return ONLY JSON:
{"title": "Topic Name", "sections": ["Section 1", "Section 2"]}`, strings.Join(headings, "\n"))

	raw, err := s.model.Complete(ctx, system, user, outlineTemperature, outlineMaxTokens)
	if err != nil {
		return "", nil, err
	}
	var outline struct {
		Title    string   `json:"title"`
		Sections []string `json:"sections"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &outline); err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	if outline.Title == "" || len(outline.Sections) == 0 {
		return "", nil, fmt.Errorf("%w: missing title or sections", domain.ErrMalformedOutput)
	}
	if len(outline.Sections) > maxOutlineSections {
		outline.Sections = outline.Sections[:maxOutlineSections]
	}
	return outline.Title, outline.Sections, nil
}

// uniqueHeadings collects second-level markdown headers, deduplicated
// case-insensitively, excluding the generic placeholder, first-seen order.
func uniqueHeadings(combined string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range headingRe.FindAllStringSubmatch(combined, -1) {
		h := strings.TrimSpace(m[1])
		key := strings.ToLower(h)
		if key == strings.ToLower(placeholderTitle) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// findRelevantContent selects note blocks whose text mentions any word of
// the section name, falling back to the first two blocks.
func findRelevantContent(sectionName string, blocks []string) string {
	keywords := strings.Fields(strings.ToLower(sectionName))
	var relevant []string
	for _, block := range blocks {
		lower := strings.ToLower(block)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				relevant = append(relevant, block)
				break
			}
		}
	}
	if len(relevant) == 0 {
		if len(blocks) > 2 {
			blocks = blocks[:2]
		}
		relevant = blocks
	}
	return strings.Join(relevant, "\n\n")
}

func (s *Final) enhanceSection(ctx context.Context, name, content string, ragContext []string) (string, string) {
	if s.model == nil {
		return truncate(content, enhanceFallbackChars), "model not configured"
	}
	contextText := "No document context"
	if len(ragContext) > 0 {
		if len(ragContext) > maxContextPassages {
			ragContext = ragContext[:maxContextPassages]
		}
		contextText = strings.Join(ragContext, "\n\n")
	}
	system := `You are creating concise, structured lecture notes.

Rules:
1. Use BOTH the transcription notes and the document content, mixed roughly evenly
2. Write bullet points, 10-20 words each, no long paragraphs
3. Preserve formulas in $$LaTeX$$ form
4. No repetition, no fluff; 8-10 bullets total`
	user := fmt.Sprintf(`Topic: %s

TRANSCRIPTION NOTES (what the teacher said):
%s

DOCUMENT CONTENT (use this heavily):
%s

Create concise bullet-point notes for this topic.`, name, truncate(content, 1000), truncate(contextText, 2000))

	enhanced, err := s.model.Complete(ctx, system, user, enhanceTemperature, enhanceMaxTokens)
	if err != nil {
		s.log.Warn("section enhancement failed, truncating raw content",
			"section", name, "error", err)
		return truncate(content, enhanceFallbackChars), err.Error()
	}
	return enhanced, ""
}

// ExtractFormulas pulls LaTeX formulas delimited by $$...$$ or \(...\),
// normalized to display form, deduplicated, trivial matches dropped.
func ExtractFormulas(text string) []string {
	var formulas []string
	for _, re := range []*regexp.Regexp{displayMath, inlineMath} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			f := strings.TrimSpace(m[1])
			if len(f) > 2 {
				formulas = append(formulas, fmt.Sprintf("$$\n%s\n$$", f))
			}
		}
	}
	seen := make(map[string]struct{}, len(formulas))
	var unique []string
	for _, f := range formulas {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}
	if len(unique) > maxFormulasPerSect {
		unique = unique[:maxFormulasPerSect]
	}
	return unique
}

// buildGlossary ranks bold-marked capitalized phrases by frequency and
// asks the model for grounded definitions. Without a model it stays empty.
func (s *Final) buildGlossary(ctx context.Context, combined string, ragContext []string) (map[string]string, string) {
	terms := topTerms(combined, maxGlossaryTerms)
	if len(terms) == 0 {
		return map[string]string{}, ""
	}
	if s.model == nil {
		return map[string]string{}, "model not configured"
	}

	contextText := ""
	if len(ragContext) > 0 {
		if len(ragContext) > maxContextPassages {
			ragContext = ragContext[:maxContextPassages]
		}
		contextText = strings.Join(ragContext, "\n\n")
	}
	encoded, _ := json.Marshal(terms)
	system := "Create short, precise definitions using the document content."
	user := fmt.Sprintf(`Define these terms:
%s

DOCUMENT CONTEXT (use this for definitions):
%s

Return JSON: {"definitions": {"Term": "One sentence definition (20 words max)", ...}}`,
		string(encoded), truncate(contextText, 1500))

	raw, err := s.model.Complete(ctx, system, user, glossaryTemperature, glossaryMaxTokens)
	if err != nil {
		s.log.Warn("glossary generation failed", "error", err)
		return map[string]string{}, err.Error()
	}
	var parsed struct {
		Definitions map[string]string `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		s.log.Warn("glossary response not parseable", "error", err)
		return map[string]string{}, domain.ErrMalformedOutput.Error()
	}
	if parsed.Definitions == nil {
		return map[string]string{}, ""
	}
	return parsed.Definitions, ""
}

// topTerms returns the most frequent bold capitalized phrases, ties broken
// by first appearance.
func topTerms(combined string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range boldTermRe.FindAllStringSubmatch(combined, -1) {
		term := m[1]
		if counts[term] == 0 {
			order = append(order, term)
		}
		counts[term]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func (s *Final) extractTakeaways(ctx context.Context, sections []domain.Section) ([]string, string) {
	contents := make([]string, 0, len(sections))
	for _, sec := range sections {
		contents = append(contents, sec.Content)
	}
	allContent := strings.Join(contents, "\n\n")

	if s.model == nil {
		return bulletTakeaways(allContent), "model not configured"
	}

	system := "Extract up to 4 concise key takeaways. Each: 12-18 words max."
	user := fmt.Sprintf(`LECTURE CONTENT:
%s

Extract up to 4 key takeaways: the most important, memorable concepts, 12-18 words each.

Return JSON: {"takeaways": ["Concise point 1", "Concise point 2", ...]}`, truncate(allContent, 1500))

	raw, err := s.model.Complete(ctx, system, user, takeawayTemperature, takeawayMaxTokens)
	if err != nil {
		s.log.Warn("takeaway extraction failed, using bullet fallback", "error", err)
		return bulletTakeaways(allContent), err.Error()
	}
	var parsed struct {
		Takeaways []string `json:"takeaways"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		s.log.Warn("takeaway response not parseable, using bullet fallback", "error", err)
		return bulletTakeaways(allContent), domain.ErrMalformedOutput.Error()
	}
	if len(parsed.Takeaways) > maxTakeaways {
		parsed.Takeaways = parsed.Takeaways[:maxTakeaways]
	}
	return parsed.Takeaways, ""
}

func bulletTakeaways(content string) []string {
	var out []string
	for _, m := range bulletRe.FindAllStringSubmatch(content, -1) {
		out = append(out, strings.TrimSpace(m[1]))
		if len(out) == maxTakeaways {
			break
		}
	}
	return out
}

// AssembleMarkdown renders the final document. It is pure and
// deterministic: identical inputs always produce byte-identical markdown.
func AssembleMarkdown(title string, sections []domain.Section, glossary map[string]string, takeaways []string) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("# %s\n", title))

	lines = append(lines, "## Table of Contents\n")
	for i, sec := range sections {
		lines = append(lines, fmt.Sprintf("%d. [%s](#%s)", i+1, sec.Title, Slugify(sec.Title)))
	}
	lines = append(lines, "")

	for i, sec := range sections {
		lines = append(lines, fmt.Sprintf("## %d. %s\n", i+1, sec.Title))
		lines = append(lines, sec.Content)
		lines = append(lines, "")
		if len(sec.Formulas) > 0 {
			lines = append(lines, "### Key Formulas\n")
			for _, formula := range sec.Formulas {
				lines = append(lines, formula+"\n")
			}
			lines = append(lines, "")
		}
	}

	if len(glossary) > 0 {
		lines = append(lines, "## Glossary\n")
		terms := make([]string, 0, len(glossary))
		for term := range glossary {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			lines = append(lines, fmt.Sprintf("**%s**: %s\n", term, glossary[term]))
		}
		lines = append(lines, "")
	}

	if len(takeaways) > 0 {
		lines = append(lines, "## Key Takeaways\n")
		for _, takeaway := range takeaways {
			lines = append(lines, "- "+takeaway)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// Slugify converts a section title to a URL-friendly anchor.
func Slugify(text string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
	return strings.Trim(slug, "-")
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if _, rest, ok := strings.Cut(text, "\n"); ok {
			text = rest
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
