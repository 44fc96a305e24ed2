package bulktasks

// CandidateTask is one task-to-create before enrichment
// (spec.md §3.6 TaskToCreate).
type CandidateTask struct {
	Title              string
	Description        string
	Priority           string
	MilestoneSlug      string
	ParentTaskID       string
	ExternalID         string
	AssigneePersona    string
	Metadata           map[string]any
	IsDuplicate        bool
	DuplicateOfTaskID  string
	SkipReason         string
	PriorityScore      int
	RoutedMilestone    string
}

// EnrichOptions configures a single BulkTaskCreationStep invocation.
type EnrichOptions struct {
	TitlePrefix          string
	UpsertByExternalID   bool
	ExternalIDTemplate   string
	WorkflowRunID        string
	StepName             string
	Strategy             DuplicateStrategy
	Existing             []ExistingTask
	PriorityScores       map[string]int
}

// Enrich applies the BulkTaskCreationStep enrichment pipeline
// (spec.md §4.4.5 step 1) to a batch of candidate tasks.
func Enrich(tasks []CandidateTask, opts EnrichOptions) []CandidateTask {
	calc := NewPriorityCalculator(opts.PriorityScores)
	router := TaskRouter{}
	detector := &DuplicateDetector{Strategy: opts.Strategy, Existing: opts.Existing}

	out := make([]CandidateTask, len(tasks))
	for i, t := range tasks {
		if opts.TitlePrefix != "" {
			t.Title = opts.TitlePrefix + t.Title
		}

		if detector.Strategy != "" {
			if match, _, ok := detector.Match(t.Title, t.Description, t.ExternalID, t.MilestoneSlug); ok {
				t.IsDuplicate = true
				t.DuplicateOfTaskID = match.ID
				t.SkipReason = "duplicate"
			}
		}

		t.PriorityScore = calc.Score(t.Priority)
		t.RoutedMilestone = router.Route(t.Priority)

		if opts.UpsertByExternalID && t.ExternalID == "" {
			t.ExternalID = RenderExternalID(opts.ExternalIDTemplate, ExternalIDVars{
				WorkflowRunID: opts.WorkflowRunID,
				StepName:      opts.StepName,
				TaskIndex:     i,
				Task:          t,
			})
		}

		out[i] = t
	}
	return out
}
