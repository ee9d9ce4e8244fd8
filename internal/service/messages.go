package service

// messages holds the user-facing strings for one language.
type messages struct {
	NoResults        string
	FoundList        string // count, list
	FoundSummary     string // count, top three, remaining
	Statistics       string // bookmarks, categories, tags, coverage percent
	Help             string
	SuggestKeywords  string
	SuggestWiderTime string
	SuggestSemantic  string
	SuggestMore      string
	SuggestLast30    string
	SuggestKeyword   string
	SuggestSemOnly   string
	FilterLastDays   string // days
	FilterCategory   string
	FilterTags       string // tags
	FilterDomain     string // domain
	FilterKeyword    string
	FilterSemantic   string
	AnswerSystem     string
	ListSeparator    string
}

var catalog = map[string]messages{
	"en": {
		NoResults:        "I couldn't find any bookmarks matching that.",
		FoundList:        "I found %d bookmarks: %s.",
		FoundSummary:     "I found %d bookmarks. The top matches are %s, plus %d more.",
		Statistics:       "You have %d bookmarks in %d categories with %d distinct tags. %.0f%% of them are indexed for semantic search.",
		Help:             "Ask me about your bookmarks in plain language, for example \"React tutorials from last week\". You can narrow by time (\"yesterday\", \"this month\"), category, tag or site, ask for \"keyword only\" matching, or say \"show more\" to page through results.",
		SuggestKeywords:  "Try different keywords",
		SuggestWiderTime: "Search without the time limit",
		SuggestSemantic:  "Turn semantic search back on",
		SuggestMore:      "Show more",
		SuggestLast30:    "Only the last 30 days",
		SuggestKeyword:   "Keyword matches only",
		SuggestSemOnly:   "Semantic matches only",
		FilterLastDays:   "last %d days' ",
		FilterCategory:   "under that category's ",
		FilterTags:       "tagged %s ",
		FilterDomain:     "from %s ",
		FilterKeyword:    "keyword only ",
		FilterSemantic:   "semantic only ",
		AnswerSystem: "You answer questions about the user's saved bookmarks. Use only the numbered bookmarks provided. " +
			"Reply in 1 to 5 sentences and cite sources as [n] using their numbers. " +
			"Also give 2 to 4 short follow-up search suggestions.",
		ListSeparator: ", ",
	},
	"zh": {
		NoResults:        "没有找到符合条件的书签。",
		FoundList:        "找到 %d 个书签：%s。",
		FoundSummary:     "找到 %d 个书签，最相关的是 %s，另外还有 %d 个。",
		Statistics:       "你共有 %d 个书签，%d 个分类，%d 个不同的标签，其中 %.0f%% 已建立语义索引。",
		Help:             "用自然语言描述你想找的书签即可，例如“上周收藏的 React 教程”。可以按时间（“昨天”“本月”）、分类、标签或网站筛选，说“仅关键词”只做关键词匹配，说“更多”查看更多结果。",
		SuggestKeywords:  "换个关键词试试",
		SuggestWiderTime: "取消时间限制",
		SuggestSemantic:  "开启语义搜索",
		SuggestMore:      "查看更多",
		SuggestLast30:    "只看最近30天",
		SuggestKeyword:   "仅关键词匹配",
		SuggestSemOnly:   "仅语义匹配",
		FilterLastDays:   "最近%d天",
		FilterCategory:   "该分类下",
		FilterTags:       "标签%s",
		FilterDomain:     "来自%s",
		FilterKeyword:    "仅关键词",
		FilterSemantic:   "仅语义",
		AnswerSystem: "你负责根据用户收藏的书签回答问题，只能使用提供的编号书签。" +
			"用1到5句话回答，并用 [n] 标注引用来源。" +
			"另外给出2到4条简短的后续搜索建议。",
		ListSeparator: "、",
	},
}

func messagesFor(lang string) messages {
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog["en"]
}
