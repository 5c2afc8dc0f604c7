package mcp

import "github.com/mark3labs/mcp-go/mcp"

var kindEnum = []string{"name", "cid", "smiles"}

var resolveToolDef = mcp.NewTool("compound_resolve",
	mcp.WithDescription("Look up one compound on PubChem by name, CID or SMILES. Returns the record (name, CID, InChIKey, formula, mass, SMILES) and its tab-separated output line."),
	mcp.WithString("identifier",
		mcp.Required(),
		mcp.Description("Compound name, PubChem CID, or SMILES string"),
	),
	mcp.WithString("kind",
		mcp.Description("How to interpret the identifier (default: name)"),
		mcp.Enum(kindEnum...),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var dedupeToolDef = mcp.NewTool("file_dedupe",
	mcp.WithDescription("Remove duplicate lines from a text file in place, keeping the first occurrence of each line in order. A missing file is left alone."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the file to deduplicate"),
	),
)

var runToolDef = mcp.NewTool("batch_run",
	mcp.WithDescription("Resolve every identifier in an input file (one per line) and write one tab-separated line per found compound to the output file. Blocks until the batch finishes; progress is reported through progress notifications when the request carries a progress token. Pass resume_id to continue an interrupted run. Only one batch runs at a time."),
	mcp.WithString("input_path",
		mcp.Description("File with one identifier per line (required unless resume_id is set)"),
	),
	mcp.WithString("output_path",
		mcp.Description("File to write results to; overwritten (required unless resume_id is set)"),
	),
	mcp.WithString("kind",
		mcp.Description("How to interpret the identifiers"),
		mcp.Enum(kindEnum...),
	),
	mcp.WithString("resume_id",
		mcp.Description("Run ID to resume; identifiers already resolved are skipped"),
	),
	mcp.WithNumber("interval_ms",
		mcp.Description("Pause between identifiers in milliseconds (default from config)"),
		mcp.Min(0),
	),
	mcp.WithBoolean("force",
		mcp.Description("Resume a run still marked running, e.g. after a crash"),
	),
)

var statusToolDef = mcp.NewTool("batch_status",
	mcp.WithDescription("Return the checkpoint of a run: index, successful_requests, current_step and last_saved_time (unix seconds)."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run ID"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("batch_list",
	mcp.WithDescription("List stored runs, newest first."),
	mcp.WithString("status",
		mcp.Description("Only runs with this status"),
		mcp.Enum("running", "completed", "interrupted", "failed"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum runs to return (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Runs to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var reportToolDef = mcp.NewTool("batch_report",
	mcp.WithDescription("Return a markdown report of a run with its per-identifier outcomes."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run ID"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("batch_delete",
	mcp.WithDescription("Delete a stored run and its per-identifier outcomes. Output files are not touched."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run ID"),
	),
	mcp.WithBoolean("force",
		mcp.Description("Delete even if the run is still marked running"),
	),
	mcp.WithDestructiveHintAnnotation(true),
)
