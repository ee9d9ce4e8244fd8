package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const maxPromptTags = 200

// PlannerContext is the vocabulary and history a parse may draw on.
type PlannerContext struct {
	Categories []*domain.Category
	Tags       []string
	State      *ConversationState
}

// QueryPlanner turns user text into a SearchRequest. It tries the language
// model when one is configured and falls back to phrase rules.
type QueryPlanner struct {
	patterns *compiledPatterns
	llm      StructuredLLM
	language string
	logger   logrus.FieldLogger
}

// NewQueryPlanner creates a planner for language ("zh" or "en"). llm may be nil.
func NewQueryPlanner(language string, llm StructuredLLM, logger logrus.FieldLogger) (*QueryPlanner, error) {
	if language != "zh" {
		language = "en"
	}
	other := "zh"
	if language == "zh" {
		other = "en"
	}
	return NewQueryPlannerWithPatterns(language, MergePatterns(DefaultPatterns(language), DefaultPatterns(other)), llm, logger)
}

// NewQueryPlannerWithPatterns creates a planner over a custom pattern table.
func NewQueryPlannerWithPatterns(language string, table PatternTable, llm StructuredLLM, logger logrus.FieldLogger) (*QueryPlanner, error) {
	compiled, err := compilePatterns(table)
	if err != nil {
		return nil, err
	}
	return &QueryPlanner{
		patterns: compiled,
		llm:      llm,
		language: language,
		logger:   logging.OrDiscard(logger),
	}, nil
}

// Patterns returns the table the planner matches against.
func (p *QueryPlanner) Patterns() PatternTable {
	return p.patterns.table
}

// Parse never fails: any model error falls back to the rule parser.
func (p *QueryPlanner) Parse(ctx context.Context, input string, pc PlannerContext) SearchRequest {
	ctx, span := telemetry.StartSpan(ctx, "QueryPlanner.Parse", telemetry.SpanAttributes{
		Operation: "plan",
	})
	defer span.End()

	if p.llm != nil {
		req, err := p.parseWithLLM(ctx, input, pc)
		if err == nil {
			return req
		}
		p.logger.WithError(err).Warn("AI query parsing failed, falling back to rules")
		telemetry.AddBreadcrumb(ctx, "planner", "fell back to rule-based parsing")
	}
	return p.ParseRules(input, pc)
}

// ParseRules is the deterministic parser.
func (p *QueryPlanner) ParseRules(input string, pc PlannerContext) SearchRequest {
	req := SearchRequest{
		Intent: IntentQuery,
		Query:  input,
		TopK:   DefaultTopK,
	}

	if intent := p.detectIntent(input); intent != IntentQuery {
		req.Intent = intent
		return req
	}

	norm := normalizeInput(input)
	req.Continue = matchesAny(norm, p.patterns.table.ContinuePhrases)
	req.Refine = matchesAny(norm, p.patterns.table.RefineMarkers)

	text := input
	for _, phrase := range p.patterns.clearTime {
		if containsPhrase(text, phrase) {
			req.Reset.TimeRange = true
			text = removePhrase(text, phrase)
		}
	}
	text, req.Filters.TimeRangeDays = p.extractTimeRange(text)
	text, req.Filters.Domain = p.extractDomain(text)
	text, req.TopK = p.extractTopK(text)
	text = p.extractSearchMode(text, &req)
	if !req.Reset.IsZero() || req.Filters.Semantic != nil || req.Filters.Keyword != nil {
		req.Refine = true
	}

	var names []string
	if cat := p.matchCategory(text, pc.Categories); cat != nil {
		req.Filters.CategoryID = cat.ID
		names = append(names, cat.Name)
		text = p.removeMarked(text, cat.Name, p.patterns.table.CategoryMarkers)
	}
	req.Filters.Tags = p.matchTags(text, pc.Tags, names)
	for _, tag := range req.Filters.Tags {
		names = append(names, tag)
		text = p.removeMarked(text, tag, p.patterns.table.TagMarkers)
	}

	for _, filler := range p.patterns.fillers {
		text = removePhrase(text, filler)
	}
	text = p.trimEdges(collapseSpaces(text))

	if p.isPureFilter(text, names) {
		req.RefinedQuery = ""
	} else {
		req.RefinedQuery = p.trimTrailingNouns(text)
	}
	req.Subtype = subtypeFor(req.Filters)
	return req
}

// extractSearchMode strips phrases that switch a retrieval path. Turning a
// path off sets its filter; turning one back on only drops the inherited
// switch so it returns to its default.
func (p *QueryPlanner) extractSearchMode(text string, req *SearchRequest) string {
	matched := false
	apply := func(phrases []string, set func()) {
		for _, phrase := range phrases {
			if !containsPhrase(text, phrase) {
				continue
			}
			text = removePhrase(text, phrase)
			if !matched {
				set()
				matched = true
			}
		}
	}
	apply(p.patterns.semanticOnly, func() {
		req.Filters.Keyword = BoolPtr(false)
		req.Reset.Semantic = true
	})
	apply(p.patterns.semanticOff, func() {
		req.Filters.Semantic = BoolPtr(false)
		req.Reset.Keyword = true
	})
	apply(p.patterns.semanticOn, func() {
		req.Reset.Semantic = true
	})
	return text
}

// IsPureFilter reports whether input expresses nothing beyond filters.
func (p *QueryPlanner) IsPureFilter(input string, pc PlannerContext) bool {
	req := p.ParseRules(input, pc)
	return req.Intent == IntentQuery && req.RefinedQuery == ""
}

// MergeWithState layers req onto the prior state's filters: new values win
// and absent fields are inherited unless req resets them.
func (p *QueryPlanner) MergeWithState(req SearchRequest, state ConversationState) SearchRequest {
	out := req
	out.Filters = req.Reset.Apply(state.Filters).Overlay(req.Filters)
	if out.Intent == IntentQuery {
		out.Subtype = subtypeFor(out.Filters)
	}
	return out
}

// ContinuePhrase is the synthetic follow-up text for "show more".
func (p *QueryPlanner) ContinuePhrase() string {
	if phrase := p.patterns.table.ContinuePhrase; phrase != "" {
		return phrase
	}
	return DefaultPatterns(p.language).ContinuePhrase
}

func (p *QueryPlanner) detectIntent(input string) Intent {
	norm := normalizeInput(input)
	for _, exact := range p.patterns.table.HelpExact {
		if norm == strings.ToLower(exact) {
			return IntentHelp
		}
	}
	for _, phrase := range p.patterns.table.HelpPhrases {
		if containsPhrase(norm, phrase) {
			return IntentHelp
		}
	}
	for _, phrase := range p.patterns.table.StatisticsPhrases {
		if containsPhrase(norm, phrase) {
			return IntentStatistics
		}
	}
	return IntentQuery
}

func (p *QueryPlanner) extractTimeRange(text string) (string, int) {
	days := 0
	for _, t := range p.patterns.times {
		m := t.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		if days == 0 {
			days = t.days
			if days == 0 && len(m) >= 4 && m[2] >= 0 {
				days, _ = strconv.Atoi(text[m[2]:m[3]])
			}
		}
		text = t.re.ReplaceAllString(text, " ")
	}
	return text, days
}

func (p *QueryPlanner) extractDomain(text string) (string, string) {
	for _, re := range p.patterns.domains {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		return re.ReplaceAllString(text, " "), strings.ToLower(m[1])
	}
	return text, ""
}

func (p *QueryPlanner) extractTopK(text string) (string, int) {
	for _, re := range p.patterns.topK {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if k, err := strconv.Atoi(m[1]); err == nil && k > 0 {
			return re.ReplaceAllString(text, " "), ClampTopK(k)
		}
	}
	return text, DefaultTopK
}

// matchCategory returns the category with the longest name named in text.
func (p *QueryPlanner) matchCategory(text string, categories []*domain.Category) *domain.Category {
	var best *domain.Category
	for _, c := range categories {
		if c == nil || strings.TrimSpace(c.Name) == "" {
			continue
		}
		if !containsPhrase(text, c.Name) {
			continue
		}
		if best == nil || len(c.Name) > len(best.Name) {
			best = c
		}
	}
	return best
}

// matchTags returns vocabulary tags named in text. A tag equal to an already
// matched category name only counts when a tag marker sits next to it.
func (p *QueryPlanner) matchTags(text string, vocabulary []string, taken []string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, tag := range vocabulary {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if !containsPhrase(text, tag) {
			continue
		}
		if containsFold(taken, tag) && !p.hasMarker(text, tag, p.patterns.table.TagMarkers) {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func (p *QueryPlanner) hasMarker(text, name string, markers []string) bool {
	for _, form := range markedForms(name, markers) {
		if containsPhrase(text, form) {
			return true
		}
	}
	return false
}

// removeMarked strips "marker name" and "name marker" forms from text.
func (p *QueryPlanner) removeMarked(text, name string, markers []string) string {
	for _, form := range markedForms(name, markers) {
		text = removePhrase(text, form)
	}
	return text
}

func markedForms(name string, markers []string) []string {
	var forms []string
	for _, m := range markers {
		if m == "#" {
			forms = append(forms, "#"+name)
			continue
		}
		if isHanText(m) {
			forms = append(forms, m+name, name+m, m+" "+name, name+" "+m)
			continue
		}
		forms = append(forms, m+" "+name, name+" "+m, m+` "`+name+`"`)
	}
	return byLengthDesc(forms)
}

func (p *QueryPlanner) trimEdges(text string) string {
	for {
		before := text
		text = strings.TrimFunc(text, func(r rune) bool {
			return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '#' && r != '+')
		})
		for _, w := range p.patterns.table.EdgeWords {
			text = trimAffix(text, w)
		}
		if text == before {
			return text
		}
	}
}

func (p *QueryPlanner) trimTrailingNouns(text string) string {
	for _, noun := range p.patterns.table.TrailingNouns {
		lower := strings.ToLower(text)
		if !strings.HasSuffix(lower, noun) || len(lower) == len(noun) {
			continue
		}
		rest := text[:len(text)-len(noun)]
		if isHanText(noun) || strings.HasSuffix(rest, " ") {
			text = p.trimEdges(rest)
		}
	}
	return text
}

// isPureFilter reports whether nothing but filter vocabulary remains.
func (p *QueryPlanner) isPureFilter(text string, names []string) bool {
	for _, n := range byLengthDesc(names) {
		text = removePhrase(text, n)
	}
	for _, w := range p.patterns.pureFilter {
		text = removePhrase(text, w)
	}
	text = strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	for _, tok := range tokenize(text) {
		if strings.Trim(tok, ".-_#+") != "" {
			return false
		}
	}
	return true
}

// trimAffix removes w from either end of text when it stands as its own word
// (or is Han text).
func trimAffix(text, w string) string {
	lower := strings.ToLower(text)
	if isHanText(w) {
		if strings.HasPrefix(lower, w) {
			text = text[len(w):]
			lower = lower[len(w):]
		}
		if strings.HasSuffix(lower, w) {
			text = text[:len(text)-len(w)]
		}
		return text
	}
	if lower == w {
		return ""
	}
	if strings.HasPrefix(lower, w+" ") {
		text = text[len(w)+1:]
		lower = lower[len(w)+1:]
	}
	if strings.HasSuffix(lower, " "+w) {
		text = text[:len(text)-len(w)-1]
	}
	return text
}

func matchesAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(text, phrase) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func subtypeFor(f SearchFilters) QuerySubtype {
	switch {
	case f.PopulatedCount() >= 2:
		return SubtypeCompound
	case f.TimeRangeDays > 0:
		return SubtypeTime
	case f.CategoryID != "":
		return SubtypeCategory
	case len(f.Tags) > 0:
		return SubtypeTag
	default:
		return SubtypeSemantic
	}
}

// llmPlan is the structured shape the model fills in.
type llmPlan struct {
	Intent        string   `json:"intent" enum:"query,statistics,help" description:"query for searches, statistics for counting questions, help for usage questions"`
	RefinedQuery  string   `json:"refined_query" description:"search terms only, without filler or time phrases; empty when the text only expresses filters"`
	Category      string   `json:"category" description:"exact name from the category list, or empty"`
	Tags          []string `json:"tags" description:"exact tags from the tag list that the user named"`
	Domain        string   `json:"domain" description:"website domain the user restricted to, or empty"`
	TimeRangeDays int      `json:"time_range_days" description:"look-back window in days, 0 when unrestricted"`
	KeywordOnly   bool     `json:"keyword_only" description:"true only when the user asked for exact or keyword-only matching"`
	TopK          int      `json:"top_k" description:"number of results requested, 0 for default"`
}

func (p *QueryPlanner) parseWithLLM(ctx context.Context, input string, pc PlannerContext) (SearchRequest, error) {
	var plan llmPlan
	if err := p.llm.GenerateStructured(ctx, plannerSystemPrompt(p.language), p.plannerUserPrompt(input, pc), "search_plan", &plan); err != nil {
		return SearchRequest{}, err
	}

	req := SearchRequest{
		Intent:       IntentQuery,
		Query:        input,
		RefinedQuery: strings.TrimSpace(plan.RefinedQuery),
		TopK:         ClampTopK(plan.TopK),
	}
	switch Intent(plan.Intent) {
	case IntentHelp, IntentStatistics:
		req.Intent = Intent(plan.Intent)
		return req, nil
	case IntentQuery:
	default:
		return SearchRequest{}, fmt.Errorf("unknown intent %q", plan.Intent)
	}

	// model choices are accepted only when they name supplied vocabulary
	if name := strings.TrimSpace(plan.Category); name != "" {
		// the prompt lists full paths; accept either the path or the leaf name
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = strings.TrimSpace(name[i+1:])
		}
		for _, c := range pc.Categories {
			if c != nil && strings.EqualFold(c.Name, name) {
				req.Filters.CategoryID = c.ID
				break
			}
		}
	}
	for _, t := range plan.Tags {
		for _, known := range pc.Tags {
			if strings.EqualFold(known, strings.TrimSpace(t)) && !containsFold(req.Filters.Tags, known) {
				req.Filters.Tags = append(req.Filters.Tags, known)
			}
		}
	}
	req.Filters.Domain = strings.ToLower(strings.TrimSpace(plan.Domain))
	if plan.TimeRangeDays > 0 {
		req.Filters.TimeRangeDays = plan.TimeRangeDays
	}
	// the rule pass still owns follow-up cues and search-mode phrases
	rules := p.ParseRules(input, pc)
	req.Continue, req.Refine, req.Reset = rules.Continue, rules.Refine, rules.Reset
	req.Filters.Keyword = rules.Filters.Keyword
	if plan.KeywordOnly || rules.Filters.SemanticDisabled() {
		req.Filters.Semantic = BoolPtr(false)
		req.Reset.Keyword = true
		req.Filters.Keyword = nil
		req.Refine = true
	}
	if rules.Reset.TimeRange {
		req.Filters.TimeRangeDays = 0
	}

	if rules.Intent == IntentQuery && rules.RefinedQuery == "" {
		req.RefinedQuery = ""
	}
	req.Subtype = subtypeFor(req.Filters)
	return req, nil
}

func plannerSystemPrompt(lang string) string {
	if lang == "zh" {
		return "你是书签搜索助手的查询解析器。把用户输入解析为结构化搜索请求。" +
			"分类和标签只能从提供的列表中原样选择，用户没有明确提到时留空。" +
			"时间表达换算为天数：昨天=1，最近/本周=7，本月=30，今年=365。" +
			"refined_query 只保留用于匹配的关键词，去掉客套语和时间短语。"
	}
	return "You parse requests for a personal bookmark search assistant into a structured search plan. " +
		"Only pick categories and tags verbatim from the provided lists, and leave them empty unless the user named them. " +
		"Map time phrases to days: yesterday=1, recent or this week=7, this month=30, this year=365. " +
		"refined_query keeps only the terms to match, without filler or time phrases."
}

type promptState struct {
	LastQuery string        `json:"last_query,omitempty"`
	Filters   SearchFilters `json:"filters"`
}

func (p *QueryPlanner) plannerUserPrompt(input string, pc PlannerContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User input: %s\n\n", input)

	b.WriteString("Categories:\n")
	if len(pc.Categories) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range pc.Categories {
		if c == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", strings.Join(domain.CategoryPath(pc.Categories, c.ID), " / "))
	}

	tags := pc.Tags
	if len(tags) > maxPromptTags {
		tags = tags[:maxPromptTags]
	}
	fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(tags, ", "))

	if pc.State != nil && (pc.State.LastQuery != "" || !pc.State.Filters.IsEmpty()) {
		raw, _ := json.Marshal(promptState{LastQuery: pc.State.LastQuery, Filters: pc.State.Filters})
		fmt.Fprintf(&b, "\nPrevious search: %s\n", raw)
	}
	return b.String()
}
