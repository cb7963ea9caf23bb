package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"precheck/internal/models"
	"precheck/internal/util"
)

// clauseHeadingRe matches the start of a numbered clause: markdown headings,
// "1.", "1.2", "Article 5", "Section 3" and the Chinese "第N条" style.
var clauseHeadingRe = regexp.MustCompile(`(?m)^\s*(#{1,4}\s+.+|(?:Article|Section|Clause)\s+\d+[^\n]*|\d+(?:\.\d+)*[.)、]\s+[^\n]*|第[一二三四五六七八九十百零\d]+条[^\n]*)$`)

// SplitActivity turns the parsed contract text into ordered clauses. Heading
// detection comes first; a paragraph fallback covers unstructured documents.
func (a *Agents) SplitActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusStructuring), func(ctx context.Context) (map[string]any, error) {
		data, err := a.store.Download(ctx, parsedTextKey(job.TaskID))
		if err != nil {
			return nil, fmt.Errorf("load parsed text: %w", err)
		}
		clauses := SplitClauses(string(data))
		if len(clauses) == 0 {
			return nil, fmt.Errorf("no clauses could be extracted")
		}
		if limit := a.cfg.MaxClausesPerTask; limit > 0 && len(clauses) > limit {
			a.writeEvent(ctx, job.TaskID, string(models.StatusStructuring), "WARN",
				fmt.Sprintf("clause count %d exceeds cap %d, truncating", len(clauses), limit), "")
			clauses = clauses[:limit]
		}
		for i := range clauses {
			clauses[i].TaskID = job.TaskID
		}
		if err := a.clauses.InsertClauses(ctx, job.TaskID, clauses); err != nil {
			return nil, err
		}
		return map[string]any{"clause_count": len(clauses)}, nil
	}), nil
}

// SplitClauses segments contract text into clauses. Exported for tests.
func SplitClauses(text string) []models.Clause {
	text = util.SanitizeText(text)
	if text == "" {
		return nil
	}

	locs := clauseHeadingRe.FindAllStringIndex(text, -1)
	if len(locs) >= 2 {
		return splitByHeadings(text, locs)
	}
	return splitByParagraphs(text)
}

func splitByHeadings(text string, locs [][]int) []models.Clause {
	out := make([]models.Clause, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := strings.TrimSpace(text[loc[0]:end])
		if block == "" {
			continue
		}
		title, body := splitTitle(block)
		out = append(out, models.Clause{
			ClauseID: fmt.Sprintf("c%d", len(out)+1),
			Title:    title,
			Text:     body,
			OrderNo:  len(out) + 1,
		})
	}
	return out
}

func splitByParagraphs(text string) []models.Clause {
	paras := strings.Split(text, "\n\n")
	out := make([]models.Clause, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, models.Clause{
			ClauseID: fmt.Sprintf("c%d", len(out)+1),
			Text:     p,
			OrderNo:  len(out) + 1,
		})
	}
	return out
}

func splitTitle(block string) (title, body string) {
	idx := strings.IndexByte(block, '\n')
	if idx < 0 {
		return "", block
	}
	first := strings.TrimSpace(strings.TrimLeft(block[:idx], "# "))
	rest := strings.TrimSpace(block[idx+1:])
	if rest == "" {
		return "", first
	}
	return first, rest
}
