package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/db"
)

// ReportOutput contains the result of the Report operation.
type ReportOutput struct {
	Run      db.Run       `json:"run"`
	Items    []db.RunItem `json:"items"`
	Markdown string       `json:"markdown"`
}

// Report summarizes a run as markdown: counts, the resolved compounds, and
// the identifiers that were not found or failed.
func Report(ctx context.Context, database *sql.DB, id string) (*ReportOutput, error) {
	run, err := getRun(ctx, database, id)
	if err != nil {
		return nil, err
	}
	items, err := db.ListItems(ctx, database, run.ID)
	if err != nil {
		return nil, err
	}
	return &ReportOutput{
		Run:      *run,
		Items:    items,
		Markdown: renderReport(run, items),
	}, nil
}

func renderReport(run *db.Run, items []db.RunItem) string {
	var ok, missing, failed []db.RunItem
	for _, it := range items {
		switch it.Status {
		case db.ItemOK:
			ok = append(ok, it)
		case db.ItemMissing:
			missing = append(missing, it)
		case db.ItemFailed:
			failed = append(failed, it)
		}
	}

	kindLabel := run.Kind
	if k, err := compound.ParseKind(run.Kind); err == nil {
		kindLabel = k.Label()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", run.ID)
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Input | %s |\n", mdCell(mdCode(run.InputPath)))
	fmt.Fprintf(&b, "| Output | %s |\n", mdCell(mdCode(run.OutputPath)))
	fmt.Fprintf(&b, "| Kind | %s |\n", kindLabel)
	fmt.Fprintf(&b, "| Status | %s |\n", run.Status)
	fmt.Fprintf(&b, "| Progress | %d/%d |\n", run.Index, run.Total)
	fmt.Fprintf(&b, "| Resolved | %d |\n", len(ok))
	fmt.Fprintf(&b, "| Not found | %d |\n", len(missing))
	fmt.Fprintf(&b, "| Failed | %d |\n", len(failed))
	fmt.Fprintf(&b, "| Last step | %s |\n", mdCell(mdText(run.CurrentStep)))
	fmt.Fprintf(&b, "| Last saved | %s |\n", time.UnixMilli(run.UpdatedAt).UTC().Format(time.RFC3339))
	if run.Error != nil {
		fmt.Fprintf(&b, "| Error | %s |\n", mdCell(mdText(*run.Error)))
	}

	if len(ok) > 0 {
		b.WriteString("\n## Resolved\n\n")
		b.WriteString("| # | Identifier | Name | CID |\n|---:|---|---|---:|\n")
		for _, it := range ok {
			var cid int64
			if it.CID != nil {
				cid = *it.CID
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %d |\n",
				it.Position, mdCell(mdCode(it.Identifier)), mdCell(mdText(derefString(it.Name))), cid)
		}
	}

	if len(missing) > 0 {
		b.WriteString("\n## Not found\n\n")
		for _, it := range missing {
			fmt.Fprintf(&b, "- %s\n", mdCode(it.Identifier))
		}
	}

	if len(failed) > 0 {
		b.WriteString("\n## Failed\n\n")
		for _, it := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", mdCode(it.Identifier), mdText(derefString(it.Error)))
		}
	}

	return b.String()
}

// mdCell escapes a value for a markdown table cell.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// mdCode wraps a value in a code span, using a backtick fence longer than
// any backtick run inside it. SMILES brackets stay literal this way.
func mdCode(s string) string {
	if s == "" {
		return ""
	}
	longest, run := 0, 0
	for _, r := range s {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	fence := strings.Repeat("`", longest+1)
	return fence + s + fence
}

// mdEscaper backslash-escapes the punctuation that starts inline markdown.
var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"!", `\!`,
	"~", `\~`,
	"&", `\&`,
	"\n", " ",
	"\r", " ",
)

// mdText escapes free text (names, error messages) for inline markdown.
func mdText(s string) string {
	return mdEscaper.Replace(s)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
