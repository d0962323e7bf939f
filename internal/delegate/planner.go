package delegate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// plannerOutput is the planner model's strict-JSON response shape: a flat
// array of subtask prompt strings, no nesting or dependency metadata.
type plannerOutput struct {
	Subtasks []string `json:"subtasks"`
}

// ParsePlan parses the planner model's response into a subtask prompt
// list, tolerating a markdown code fence the way the search engine's query
// expansion parser does. An empty or malformed response is an error;
// Engine.planWith reports it to its callers as domain.ErrPlannerOutput.
func ParsePlan(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out plannerOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("delegate: parse plan: %w", err)
	}
	if len(out.Subtasks) == 0 {
		return nil, fmt.Errorf("delegate: plan has no subtasks")
	}
	return out.Subtasks, nil
}

// plannerPrompt builds the instruction sent to the specialist model asking
// it to decompose a prompt into independently answerable subtasks.
func plannerPrompt(rootPrompt string) string {
	return fmt.Sprintf(`Break the following request into 2-5 independent subtasks that can be answered separately and then combined. Respond with strict JSON only, no markdown code fences, no commentary, in this exact shape:
{"subtasks": ["...", "..."]}

Request: %s`, rootPrompt)
}

// replanPrompt asks for a smaller decomposition of a single subtask that
// turned out to need specialist-level reasoning. Used when recursing into
// another round of planning below maxDepth.
func replanPrompt(task string) string {
	return fmt.Sprintf(`Break the following subtask into 1-3 simpler subtasks that can be answered separately and then combined. Respond with strict JSON only, no markdown code fences, no commentary, in this exact shape:
{"subtasks": ["...", "..."]}

Subtask: %s`, task)
}
