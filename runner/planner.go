package runner

// Planner is the synchronous external collaborator consulted during
// INTAKE when a case carries a task_intake prompt instead of a pre-canned
// action list. Its raw text reply is the only trusted channel; Generate
// returning an error is treated the same as an empty reply — a
// plan_parse_failure, not a fatal run error.
type Planner interface {
	Generate(prompt string, seed int) (rawText string, err error)
}
