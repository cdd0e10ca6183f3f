package research

import (
	"fmt"
	"strings"
)

func describeTopic(topic Topic) string {
	var sb strings.Builder
	sb.WriteString("Research topic: " + topic.Text + "\n")
	if len(topic.Answers) == 0 {
		return sb.String()
	}
	sb.WriteString("\nClarifications from the user:\n")
	for i, answer := range topic.Answers {
		if strings.TrimSpace(answer) == "" {
			continue
		}
		if i < len(topic.Questions) {
			sb.WriteString(fmt.Sprintf("- Q: %s\n  A: %s\n", topic.Questions[i], answer))
		} else {
			sb.WriteString(fmt.Sprintf("- %s\n", answer))
		}
	}
	return sb.String()
}

func describeFindings(findings []Finding) string {
	if len(findings) == 0 {
		return "No findings yet.\n"
	}
	var sb strings.Builder
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("Finding %d: %s\n", i+1, f.Summary))
		if len(f.Sources) > 0 {
			sb.WriteString("Sources: " + strings.Join(f.Sources, ", ") + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func planningPrompt(topic Topic, iteration, maxIterations int, findings []Finding) string {
	return fmt.Sprintf(`You are a research planner.
%s
Iteration %d of %d.

Findings so far:
%s
Write the single web search query that will best fill the gaps in the findings.
Return a JSON object: {"query": "<search query>"}`,
		describeTopic(topic), iteration+1, maxIterations, describeFindings(findings))
}

func extractionPrompt(topic Topic, content ExtractedContent) string {
	return fmt.Sprintf(`You extract research material.
%s
Source: %s (%s)

Keep every fact, figure and claim from the document that is relevant to the topic.
Drop navigation, boilerplate and unrelated text. Answer with the extracted text only.

Document:
%s`, describeTopic(topic), content.Title, content.SourceURL, content.Text)
}

func analysisPrompt(topic Topic, prior []Finding, contents []ExtractedContent) string {
	var sources strings.Builder
	for _, c := range contents {
		sources.WriteString(fmt.Sprintf("[Source]: %s\n[Title]: %s\n[Content]: %s\n\n", c.SourceURL, c.Title, c.Body()))
	}
	return fmt.Sprintf(`You are a research analyst.
%s
Previous findings:
%s
New material:
%s
Synthesize the new material into one finding that builds on the previous findings.
Decide whether the findings together are sufficient to write a complete report on the topic.
Return a JSON object:
{"summary": "<finding>", "sources": ["<url>", ...], "sufficient": true|false}`,
		describeTopic(topic), describeFindings(prior), sources.String())
}

func reportPrompt(topic Topic, findings []Finding) string {
	return fmt.Sprintf(`Write a comprehensive research report.
%s
Use the following findings, listed in the order they were discovered:

%s
Format as Markdown with Introduction, Key Findings, Discussion, Conclusion and a Sources section.
If there are no findings, say so and describe what is known about the topic in general terms.`,
		describeTopic(topic), describeFindings(findings))
}
