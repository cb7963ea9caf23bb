package agents

import (
	"context"
	"strings"

	"precheck/internal/models"
)

// rule is one entry of the static keyword ruleset. Hits feed the retrieval
// query and the risk model prompt as hints; they are not risks themselves.
type rule struct {
	Key      string
	Keywords []string
	Hint     string
}

var ruleset = []rule{
	{
		Key:      "liability.uncapped",
		Keywords: []string{"unlimited liability", "without limit", "不设上限", "全部损失"},
		Hint:     "possible uncapped liability exposure",
	},
	{
		Key:      "liability.indemnity",
		Keywords: []string{"indemnif", "hold harmless", "赔偿"},
		Hint:     "indemnity clause, check scope and mutuality",
	},
	{
		Key:      "termination.convenience",
		Keywords: []string{"terminate for convenience", "terminate at any time", "单方解除"},
		Hint:     "one-sided termination right",
	},
	{
		Key:      "payment.terms",
		Keywords: []string{"payment", "invoice", "late fee", "付款", "违约金"},
		Hint:     "payment terms, check deadlines and penalties",
	},
	{
		Key:      "ip.assignment",
		Keywords: []string{"intellectual property", "work product", "assign", "知识产权"},
		Hint:     "IP ownership or assignment clause",
	},
	{
		Key:      "confidentiality",
		Keywords: []string{"confidential", "non-disclosure", "保密"},
		Hint:     "confidentiality obligation, check duration and scope",
	},
	{
		Key:      "dispute.jurisdiction",
		Keywords: []string{"governing law", "jurisdiction", "arbitration", "管辖", "仲裁"},
		Hint:     "dispute resolution and governing law",
	},
	{
		Key:      "auto.renewal",
		Keywords: []string{"automatically renew", "auto-renew", "自动续"},
		Hint:     "automatic renewal, check notice window",
	},
}

// RulesActivity runs the keyword ruleset over every clause and records hits
// for the retrieval and risk stages.
func (a *Agents) RulesActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusRuleScoring), func(ctx context.Context) (map[string]any, error) {
		clauses, err := a.clauses.ListClauses(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		hitCount := 0
		for _, c := range clauses {
			for _, hit := range MatchRules(c.Text) {
				hit.TaskID = job.TaskID
				hit.ClauseID = c.ClauseID
				if err := a.hits.InsertRuleHit(ctx, hit); err != nil {
					return nil, err
				}
				hitCount++
			}
		}
		return map[string]any{"clause_count": len(clauses), "rule_hits": hitCount}, nil
	}), nil
}

// MatchRules returns at most one hit per rule key for the given clause text.
func MatchRules(text string) []models.RuleHit {
	lower := strings.ToLower(text)
	out := make([]models.RuleHit, 0, 2)
	for _, r := range ruleset {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, models.RuleHit{RuleKey: r.Key, Hint: r.Hint})
				break
			}
		}
	}
	return out
}
