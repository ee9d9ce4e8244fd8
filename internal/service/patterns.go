package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PatternTableVersion identifies the phrase data shipped with this build.
const PatternTableVersion = "3"

// TimePhrase maps a regular expression to a time window. When Days is 0 the
// first capture group holds the day count.
type TimePhrase struct {
	Pattern string `json:"pattern"`
	Days    int    `json:"days"`
}

// PatternTable is the phrase data driving rule-based query parsing for one
// language. Adding a phrasing is a data edit.
type PatternTable struct {
	Version  string `json:"version"`
	Language string `json:"language"`

	HelpExact         []string `json:"help_exact"`
	HelpPhrases       []string `json:"help_phrases"`
	StatisticsPhrases []string `json:"statistics_phrases"`

	TimeRanges     []TimePhrase `json:"time_ranges"`
	ClearTime      []string     `json:"clear_time"`
	SemanticOff    []string     `json:"semantic_off"`
	SemanticOnly   []string     `json:"semantic_only"`
	SemanticOn     []string     `json:"semantic_on"`
	DomainPatterns []string     `json:"domain_patterns"`
	TopKPatterns   []string     `json:"top_k_patterns"`

	CategoryMarkers []string `json:"category_markers"`
	TagMarkers      []string `json:"tag_markers"`

	Fillers       []string `json:"fillers"`
	EdgeWords     []string `json:"edge_words"`
	TrailingNouns []string `json:"trailing_nouns"`
	PureFilter    []string `json:"pure_filter"`

	// A follow-up that names no topic of its own applies to the previous
	// query: continue phrases page through it, refine markers narrow it.
	ContinuePhrases []string `json:"continue_phrases"`
	RefineMarkers   []string `json:"refine_markers"`

	ContinuePhrase string `json:"continue_phrase"`
}

// DefaultPatterns returns the built-in table for lang ("zh" or "en").
func DefaultPatterns(lang string) PatternTable {
	if lang == "zh" {
		return zhPatterns()
	}
	return enPatterns()
}

func enPatterns() PatternTable {
	return PatternTable{
		Version:  PatternTableVersion,
		Language: "en",

		HelpExact: []string{"help", "usage", "features"},
		HelpPhrases: []string{
			"what can you do", "how does this work", "how do i use this", "how to use this",
			"what features", "how do you work", "show me the commands", "try different keywords",
			"try other keywords",
		},
		StatisticsPhrases: []string{
			"how many", "number of bookmarks", "bookmark count", "statistics", "stats", "count my",
		},

		TimeRanges: []TimePhrase{
			{Pattern: `\b(?:last|past) (\d+) days?\b`, Days: 0},
			{Pattern: `\byesterday\b`, Days: 1},
			{Pattern: `\btoday\b`, Days: 1},
			{Pattern: `\b(?:this|last|past) week\b`, Days: 7},
			{Pattern: `\brecent(?:ly)?\b`, Days: 7},
			{Pattern: `\b(?:this|last|past) month\b`, Days: 30},
			{Pattern: `\b(?:this|last|past) year\b`, Days: 365},
		},
		ClearTime: []string{
			"without the time limit", "without a time limit", "without time limit", "no time limit",
			"any time", "all time",
		},
		SemanticOff: []string{
			"keyword matches only", "keyword match only", "keyword only", "keywords only", "only keywords",
			"exact match", "exact matches", "no semantic",
		},
		SemanticOnly: []string{
			"semantic matches only", "semantic match only", "semantic only", "only semantic", "no keywords",
		},
		SemanticOn: []string{
			"turn semantic search back on", "turn semantic search on", "turn on semantic search",
			"enable semantic search", "semantic search on",
		},
		DomainPatterns: []string{
			`\bsite:((?:[a-z0-9-]+\.)+[a-z]{2,})`,
			`\b(?:from|on) ((?:[a-z0-9-]+\.)+[a-z]{2,})\b`,
		},
		TopKPatterns: []string{
			`\btop (\d+)\b`,
			`\b(\d+) results?\b`,
		},

		CategoryMarkers: []string{"category", "categories", "folder"},
		TagMarkers:      []string{"tagged with", "tagged", "tags", "tag", "#"},

		Fillers: []string{
			"please", "can you", "could you", "would you", "help me find", "i'm looking for", "looking for",
			"look for", "search for", "find me", "find more", "show more", "show me", "give me", "i want",
			"i need", "related to", "relating to", "on the topic of", "regarding", "that i saved", "i saved",
			"i added", "under that category's", "under that category", "search", "find", "show", "list",
			"about", "some", "any", "more", "only", "just",
		},
		EdgeWords: []string{
			"from", "in", "on", "of", "about", "with", "for", "and", "the", "my", "to", "at", "under",
			"during", "s", "all", "saved", "added", "bookmarked",
		},
		TrailingNouns: []string{"bookmarks", "bookmark", "pages", "page", "links", "link", "sites"},
		PureFilter: []string{
			"bookmarks", "bookmark", "pages", "page", "links", "link", "sites", "site", "items", "stuff",
			"in", "under", "from", "with", "tagged", "tags", "tag", "category", "categories", "folder",
			"the", "my", "all", "of", "on", "at", "s", "saved", "added", "created", "bookmarked", "show",
			"me", "list", "find", "get", "everything", "domain", "that", "i", "during", "for", "and",
			"what", "were", "was", "did", "have", "only", "just", "more",
		},

		ContinuePhrases: []string{"show more", "find more", "more results", "next page", "more"},
		RefineMarkers:   []string{"only", "just", "narrow to", "limit to"},

		ContinuePhrase: "find more",
	}
}

func zhPatterns() PatternTable {
	return PatternTable{
		Version:  PatternTableVersion,
		Language: "zh",

		HelpExact:         []string{"帮助"},
		HelpPhrases:       []string{"怎么用", "如何使用", "你能做什么", "使用说明", "功能介绍", "有什么功能", "换个关键词"},
		StatisticsPhrases: []string{"多少", "几个书签", "统计", "数量", "总共有"},

		TimeRanges: []TimePhrase{
			{Pattern: `最近(\d+)天`, Days: 0},
			{Pattern: `(\d+)天内`, Days: 0},
			{Pattern: `昨天`, Days: 1},
			{Pattern: `今天`, Days: 1},
			{Pattern: `最近一个月|近一个月|这个月|本月|上个月`, Days: 30},
			{Pattern: `最近一年|近一年|今年`, Days: 365},
			{Pattern: `最近一周|近一周|这周|本周|上周|这一周|最近`, Days: 7},
		},
		ClearTime:      []string{"取消时间限制", "不限时间", "所有时间", "不限日期"},
		SemanticOff:    []string{"仅关键词匹配", "只用关键词匹配", "仅关键词", "只用关键词", "只要关键词", "精确匹配", "关键词匹配"},
		SemanticOnly:   []string{"仅语义匹配", "只用语义匹配", "仅语义", "只用语义", "只要语义"},
		SemanticOn:     []string{"开启语义搜索", "打开语义搜索", "启用语义搜索", "恢复语义搜索"},
		DomainPatterns: []string{`来自((?:[a-z0-9-]+\.)+[a-z]{2,})`, `((?:[a-z0-9-]+\.)+[a-z]{2,})上的`},
		TopKPatterns:   []string{`前(\d+)个`, `(\d+)个结果`, `(\d+)条`},

		CategoryMarkers: []string{"分类", "类别", "文件夹", "目录"},
		TagMarkers:      []string{"标签", "标记为", "#"},

		Fillers: []string{
			"请帮我", "请", "帮我", "帮忙", "找一下", "找找", "查找", "搜索", "搜一下", "给我", "看看", "看一下",
			"列出", "显示", "相关的", "相关", "有关的", "有关", "关于", "一些", "我想要", "我想", "我要", "更多",
			"再来一些", "收藏的", "保存的", "添加的", "我的", "该分类下", "找", "给我看", "只看", "仅看", "查看",
		},
		EdgeWords:     []string{"的", "在", "里", "中", "下"},
		TrailingNouns: []string{"书签", "网页", "页面", "链接"},
		PureFilter: []string{
			"书签", "网页", "页面", "链接", "网站", "添加", "收藏", "保存", "的", "在", "分类", "下", "标签",
			"里", "中", "所有", "全部", "我", "了", "内容", "哪些", "有", "给我看", "只看", "查看", "只", "仅", "看",
		},

		ContinuePhrases: []string{"查看更多", "再来一些", "下一页", "更多"},
		RefineMarkers:   []string{"只看", "仅看", "只要", "只", "仅"},

		ContinuePhrase: "更多",
	}
}

// MergePatterns concatenates tables, primary first, so inputs in any
// supported language are recognized.
func MergePatterns(primary PatternTable, others ...PatternTable) PatternTable {
	out := primary
	for _, o := range others {
		out.HelpExact = append(append([]string(nil), out.HelpExact...), o.HelpExact...)
		out.HelpPhrases = append(append([]string(nil), out.HelpPhrases...), o.HelpPhrases...)
		out.StatisticsPhrases = append(append([]string(nil), out.StatisticsPhrases...), o.StatisticsPhrases...)
		out.TimeRanges = append(append([]TimePhrase(nil), out.TimeRanges...), o.TimeRanges...)
		out.ClearTime = append(append([]string(nil), out.ClearTime...), o.ClearTime...)
		out.SemanticOff = append(append([]string(nil), out.SemanticOff...), o.SemanticOff...)
		out.SemanticOnly = append(append([]string(nil), out.SemanticOnly...), o.SemanticOnly...)
		out.SemanticOn = append(append([]string(nil), out.SemanticOn...), o.SemanticOn...)
		out.DomainPatterns = append(append([]string(nil), out.DomainPatterns...), o.DomainPatterns...)
		out.TopKPatterns = append(append([]string(nil), out.TopKPatterns...), o.TopKPatterns...)
		out.CategoryMarkers = append(append([]string(nil), out.CategoryMarkers...), o.CategoryMarkers...)
		out.TagMarkers = append(append([]string(nil), out.TagMarkers...), o.TagMarkers...)
		out.Fillers = append(append([]string(nil), out.Fillers...), o.Fillers...)
		out.EdgeWords = append(append([]string(nil), out.EdgeWords...), o.EdgeWords...)
		out.TrailingNouns = append(append([]string(nil), out.TrailingNouns...), o.TrailingNouns...)
		out.PureFilter = append(append([]string(nil), out.PureFilter...), o.PureFilter...)
		out.ContinuePhrases = append(append([]string(nil), out.ContinuePhrases...), o.ContinuePhrases...)
		out.RefineMarkers = append(append([]string(nil), out.RefineMarkers...), o.RefineMarkers...)
	}
	return out
}

type compiledTime struct {
	re   *regexp.Regexp
	days int
}

// compiledPatterns is a PatternTable ready for matching.
type compiledPatterns struct {
	table        PatternTable
	times        []compiledTime
	domains      []*regexp.Regexp
	topK         []*regexp.Regexp
	fillers      []string
	pureFilter   []string
	clearTime    []string
	semanticOff  []string
	semanticOnly []string
	semanticOn   []string
}

func compilePatterns(t PatternTable) (*compiledPatterns, error) {
	c := &compiledPatterns{
		table:        t,
		fillers:      byLengthDesc(t.Fillers),
		pureFilter:   byLengthDesc(t.PureFilter),
		clearTime:    byLengthDesc(t.ClearTime),
		semanticOff:  byLengthDesc(t.SemanticOff),
		semanticOnly: byLengthDesc(t.SemanticOnly),
		semanticOn:   byLengthDesc(t.SemanticOn),
	}
	for _, tp := range t.TimeRanges {
		re, err := regexp.Compile("(?i)" + tp.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid time pattern %q: %w", tp.Pattern, err)
		}
		c.times = append(c.times, compiledTime{re: re, days: tp.Days})
	}
	for _, p := range t.DomainPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid domain pattern %q: %w", p, err)
		}
		c.domains = append(c.domains, re)
	}
	for _, p := range t.TopKPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid top-k pattern %q: %w", p, err)
		}
		c.topK = append(c.topK, re)
	}
	return c, nil
}

// byLengthDesc orders phrases longest first so "find me" wins over "find".
func byLengthDesc(phrases []string) []string {
	out := append([]string(nil), phrases...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}

func normalizeInput(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), " .!?。！？，,"))
}
