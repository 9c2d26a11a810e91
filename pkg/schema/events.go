package schema

// Event type constants published on the pipeline event stream.
const (
	EventStateChanged       = "pipeline.state_changed"
	EventSchemaExtracted    = "schema.extracted"
	EventDiagramSynthesized = "diagram.synthesized"
	EventDiagramRendered    = "diagram.rendered"
	EventRenderFailed       = "diagram.render_failed"
	EventRenderDiscarded    = "diagram.render_discarded"
	EventExportCompleted    = "export.completed"
	EventExportFailed       = "export.failed"
	EventPipelineReset      = "pipeline.reset"
)

// Activity log constants.
const (
	ToolERDStudio = "ERD_STUDIO"

	ActivityGenerated = "Generated ERD"
	ActivityExported  = "Exported ERD"
)
