package classify

// QueryType is the coarse intent category assigned to a query. The tier
// selection policy keys off this value.
type QueryType string

const (
	// QueryFactualDate asks for a date or time ("什么时候", "when").
	QueryFactualDate QueryType = "factual_date"
	// QueryAdministrative asks for status, progress, or a report.
	QueryAdministrative QueryType = "administrative"
	// QueryAnalytical asks for reasons, comparisons, or evaluation.
	QueryAnalytical QueryType = "analytical"
	// QueryCreative asks for ideas, designs, or improvements.
	QueryCreative QueryType = "creative"
	// QueryFactualList asks for an enumeration.
	QueryFactualList QueryType = "factual_list"
	// QueryFactual is the generic fact lookup.
	QueryFactual QueryType = "factual"
	// QueryGeneral is the default when nothing matches.
	QueryGeneral QueryType = "general"
)

// Rule pairs an intent with the keywords that vote for it. Keywords are
// matched as case-insensitive substrings; every hit adds one point to the
// intent's score. Rules are evaluated in declaration order, which is also
// the tie-break order for equal scores.
type Rule struct {
	Type     QueryType
	Keywords []string
}

// DefaultRules returns the built-in ordered rule table. More specific
// intents are listed before broader ones so that ties resolve toward the
// narrow interpretation. Callers may pass an alternate table to
// NewClassifier; the table is data, not code.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:     QueryFactualDate,
			Keywords: []string{"什么时候", "日期", "时间", "几号", "when", "date", "schedule"},
		},
		{
			Type: QueryAdministrative,
			Keywords: []string{
				"检查", "状态", "报告", "总结", "概览", "汇总", "进度", "清单",
				"check", "status", "report", "summary", "progress", "overview",
			},
		},
		{
			Type: QueryAnalytical,
			Keywords: []string{
				"为什么", "分析", "原因", "对比", "优劣", "优缺点", "评估",
				"why", "analyze", "analyse", "reason", "compare", "evaluate", "tradeoff",
			},
		},
		{
			Type: QueryCreative,
			Keywords: []string{
				"如何", "改进", "创意", "建议", "想法", "设计", "优化", "怎么办",
				"how to", "improve", "suggest", "idea", "design", "optimize", "brainstorm",
			},
		},
		{
			Type:     QueryFactualList,
			Keywords: []string{"列出", "有哪些", "显示", "list", "enumerate", "show me"},
		},
		{
			Type: QueryFactual,
			Keywords: []string{
				"什么", "多少", "哪里", "谁", "是什么",
				"what", "who", "where", "which", "how many",
			},
		},
	}
}
