package usecase

import (
	"fmt"
	"strings"

	"rfprag/internal/domain"
)

// NoContextTag marks prompts built without any retrieved passage.
const NoContextTag = "[no_context]"

// InsufficientInformation is the reply the model is told to give when the
// context does not contain the answer.
const InsufficientInformation = "I don't have enough information to answer that."

const answerInstructions = `You are an intelligent assistant that answers questions based on the provided context.
Use only the information from the context below to answer the question.
If the answer is not in the context, say "` + InsufficientInformation + `"`

const draftInstructions = `You are drafting one section of a response to a Request for Proposal.
Ground every statement in the project context below. Where the context is silent, say what information is missing instead of inventing it.
Write in a confident, professional tone. Do not repeat content already covered by earlier sections.`

// renderContext numbers the retrieved passages, or emits the no-context
// tag when there are none.
func renderContext(rc domain.RetrievedContext) string {
	if rc.Empty() {
		return NoContextTag + " No relevant passages were found in this project's documents."
	}
	var b strings.Builder
	for i, c := range rc.Chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s)\n%s", i+1, c.Chunk.DocumentID, c.Chunk.Text)
	}
	return b.String()
}

// BuildAnswerPrompt builds the grounding prompt for a single question.
func BuildAnswerPrompt(question string, rc domain.RetrievedContext) []domain.ChatMessage {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(renderContext(rc))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return []domain.ChatMessage{
		{Role: "system", Content: answerInstructions},
		{Role: "user", Content: b.String()},
	}
}

// BuildSectionPrompt builds the prompt for one draft section from its own
// retrieved context and the summary of the sections written before it.
func BuildSectionPrompt(project domain.Project, section domain.SectionDefinition, rc domain.RetrievedContext, summary string) []domain.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", projectTitle(project))
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	if !project.DueDate.IsZero() {
		fmt.Fprintf(&b, "Due date: %s\n", project.DueDate.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "\nSection: %s\n", section.Name)
	if section.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", section.Instructions)
	}

	if summary != "" {
		b.WriteString("\nPreviously written sections:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	b.WriteString("\nContext:\n")
	b.WriteString(renderContext(rc))
	fmt.Fprintf(&b, "\n\nWrite the %q section now.", section.Name)

	return []domain.ChatMessage{
		{Role: "system", Content: draftInstructions},
		{Role: "user", Content: b.String()},
	}
}

func projectTitle(p domain.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("project %d", p.ID)
}

// promptText flattens messages into the text stored with a generated section.
func promptText(messages []domain.ChatMessage) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Role + ": " + m.Content
	}
	return strings.Join(parts, "\n\n")
}

const summaryExcerptTokens = 60

// runningSummary condenses earlier sections into at most limit tokens,
// dropping the oldest sections first.
func runningSummary(done []domain.GeneratedSection, limit int) string {
	if limit <= 0 || len(done) == 0 {
		return ""
	}

	lines := make([][]string, len(done))
	total := 0
	for i, s := range done {
		words := strings.Fields(s.Text)
		if len(words) > summaryExcerptTokens {
			words = append(words[:summaryExcerptTokens:summaryExcerptTokens], "...")
		}
		lines[i] = append(strings.Fields("- "+s.Name+":"), words...)
		total += len(lines[i])
	}

	for len(lines) > 1 && total > limit {
		total -= len(lines[0])
		lines = lines[1:]
	}
	if total > limit {
		lines[0] = lines[0][:limit]
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.Join(l, " ")
	}
	return strings.Join(out, "\n")
}
