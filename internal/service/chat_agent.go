package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	maxSuggestions   = 4
	minSuggestions   = 2
	maxListedTitles  = 5
	summarizedTitles = 3
)

// ChatResponse is the outcome of one conversational turn.
type ChatResponse struct {
	Response     string             `json:"response"`
	Suggestions  []string           `json:"suggestions"`
	Bookmarks    []*domain.Bookmark `json:"bookmarks"`
	SearchResult *SearchResult      `json:"search_result,omitempty"`
	Request      SearchRequest      `json:"request"`
	State        ConversationState  `json:"state"`
}

// ChatSearchAgent orchestrates planning, retrieval and answering for a chat turn
type ChatSearchAgent struct {
	store    BookmarkStore
	planner  *QueryPlanner
	hybrid   *HybridRetriever
	llm      StructuredLLM
	language string
	msgs     messages
	logger   logrus.FieldLogger

	mu         sync.RWMutex
	categories []*domain.Category
}

// NewChatSearchAgent creates a new ChatSearchAgent. llm may be nil.
func NewChatSearchAgent(store BookmarkStore, planner *QueryPlanner, hybrid *HybridRetriever, llm StructuredLLM, language string, logger logrus.FieldLogger) *ChatSearchAgent {
	return &ChatSearchAgent{
		store:    store,
		planner:  planner,
		hybrid:   hybrid,
		llm:      llm,
		language: language,
		msgs:     messagesFor(language),
		logger:   logging.OrDiscard(logger),
	}
}

// Categories returns the category list loaded by the most recent turn.
func (a *ChatSearchAgent) Categories() []*domain.Category {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.categories
}

// Search answers one user utterance against state and returns the next state.
// An utterance that names no topic but asks for more results or narrows the
// search applies to the previous query. Only storage failures are returned
// as errors.
func (a *ChatSearchAgent) Search(ctx context.Context, input string, state ConversationState) (*ChatResponse, error) {
	input = strings.TrimSpace(input)
	return a.run(ctx, turn{kind: turnSearch, input: input, said: input, lastQuery: input}, state)
}

// ContinueSearch asks for more results of the previous query; already shown
// bookmarks are excluded through the seen set.
func (a *ChatSearchAgent) ContinueSearch(ctx context.Context, state ConversationState) (*ChatResponse, error) {
	return a.run(ctx, a.continueTurn(state, ""), state)
}

// ApplyFilter layers update onto the conversation filters, drops the seen
// set and re-runs the previous query. Fields set in update win over anything
// the previous query's text implies.
func (a *ChatSearchAgent) ApplyFilter(ctx context.Context, update SearchFilters, state ConversationState) (*ChatResponse, error) {
	t, next := a.filterTurn(update, FilterReset{}, state, "")
	return a.run(ctx, t, next)
}

type turnKind int

const (
	turnSearch turnKind = iota
	turnContinue
	turnFilter
)

// turn is one planner pass. input is what the planner parses, said is what
// short memory records and lastQuery is remembered for follow-ups.
type turn struct {
	kind      turnKind
	input     string
	said      string
	lastQuery string
	update    SearchFilters
	reset     FilterReset
}

func (a *ChatSearchAgent) continueTurn(state ConversationState, said string) turn {
	input := strings.TrimSpace(a.planner.ContinuePhrase() + " " + state.LastQuery)
	if said == "" {
		said = input
	}
	return turn{kind: turnContinue, input: input, said: said, lastQuery: state.LastQuery}
}

func (a *ChatSearchAgent) filterTurn(update SearchFilters, reset FilterReset, state ConversationState, said string) (turn, ConversationState) {
	next := state.Clone()
	next.Filters = reset.Apply(state.Filters).Overlay(update)
	next.SeenBookmarkIDs = []string{}

	input := strings.TrimSpace(a.filterPrefix(update) + state.LastQuery)
	if said == "" {
		said = input
	}
	return turn{
		kind:      turnFilter,
		input:     input,
		said:      said,
		lastQuery: state.LastQuery,
		update:    update.Clone(),
		reset:     reset,
	}, next
}

func (a *ChatSearchAgent) run(ctx context.Context, t turn, state ConversationState) (*ChatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatSearchAgent.Search", telemetry.SpanAttributes{
		Operation: "chat",
	})
	defer span.End()

	categories, err := a.refreshCategories(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	tags, err := a.store.GetAllTags(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	req := a.planner.Parse(ctx, t.input, PlannerContext{
		Categories: categories,
		Tags:       tags,
		State:      &state,
	})

	span.SetData("intent", string(req.Intent))
	switch req.Intent {
	case IntentHelp:
		return a.reply(t.said, req, state, a.msgs.Help), nil
	case IntentStatistics:
		text, err := a.statistics(ctx, categories, tags)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return a.reply(t.said, req, state, text), nil
	}

	// a topic-less follow-up is re-run once against the previous query
	if t.kind == turnSearch && req.RefinedQuery == "" && state.LastQuery != "" {
		switch {
		case req.Continue:
			span.SetData("follow_up", "continue")
			return a.run(ctx, a.continueTurn(state, t.said), state)
		case req.Refine:
			span.SetData("follow_up", "filter")
			ft, next := a.filterTurn(req.Filters, req.Reset, state, t.said)
			return a.run(ctx, ft, next)
		}
	}

	merged := a.planner.MergeWithState(req, state)
	if t.kind == turnFilter {
		merged.Filters = t.reset.Apply(merged.Filters).Overlay(t.update)
		merged.Subtype = subtypeFor(merged.Filters)
	}
	result, err := a.hybrid.Search(ctx, merged.RefinedQuery, HybridSearchOptions{
		TopK:       merged.TopK,
		Filters:    merged.Filters,
		ExcludeIDs: state.SeenBookmarkIDs,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	bookmarks, err := ResolveInOrder(ctx, a.store, result.IDs())
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, suggestions := a.answer(ctx, t.input, merged, result, bookmarks, categories, state)

	shown := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		shown[i] = b.ID
	}
	next := state.withTurn(t.said, answer).withSeen(shown)
	next.LastIntent = IntentQuery
	next.LastQuery = t.lastQuery
	next.Filters = merged.Filters

	a.logger.WithFields(logrus.Fields{
		"subtype":       merged.Subtype,
		"results":       len(bookmarks),
		"total":         result.Total,
		"used_keyword":  result.UsedKeyword,
		"used_semantic": result.UsedSemantic,
	}).Debug("Chat search completed")

	return &ChatResponse{
		Response:     answer,
		Suggestions:  suggestions,
		Bookmarks:    bookmarks,
		SearchResult: result,
		Request:      merged,
		State:        next,
	}, nil
}

// reply answers a non-search intent without touching filters or the seen set.
func (a *ChatSearchAgent) reply(input string, req SearchRequest, state ConversationState, text string) *ChatResponse {
	next := state.withTurn(input, text)
	next.LastIntent = req.Intent
	return &ChatResponse{
		Response:    text,
		Suggestions: []string{},
		Bookmarks:   []*domain.Bookmark{},
		Request:     req,
		State:       next,
	}
}

func (a *ChatSearchAgent) refreshCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := a.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	a.mu.Lock()
	a.categories = categories
	a.mu.Unlock()
	return categories, nil
}

func (a *ChatSearchAgent) statistics(ctx context.Context, categories []*domain.Category, tags []string) (string, error) {
	cov, err := a.hybrid.Diagnostics(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(a.msgs.Statistics, cov.TotalBookmarks, len(categories), len(tags), cov.Coverage*100), nil
}

// llmAnswer is the structured shape of a generated answer.
type llmAnswer struct {
	Answer      string   `json:"answer" description:"1 to 5 sentences citing bookmarks as [n]"`
	Suggestions []string `json:"suggestions" description:"2 to 4 short follow-up searches"`
}

// answer never calls the model for an empty result and falls back to a
// rule-based answer on any model failure.
func (a *ChatSearchAgent) answer(ctx context.Context, input string, req SearchRequest, result *SearchResult, bookmarks []*domain.Bookmark, categories []*domain.Category, state ConversationState) (string, []string) {
	defaults := a.defaultSuggestions(req.Filters, result, len(bookmarks))
	if len(bookmarks) == 0 {
		return a.msgs.NoResults, defaults
	}

	if a.llm != nil {
		var out llmAnswer
		err := a.llm.GenerateStructured(ctx, a.msgs.AnswerSystem, answerPrompt(input, bookmarks, categories, state), "search_answer", &out)
		if err == nil && strings.TrimSpace(out.Answer) != "" {
			return strings.TrimSpace(out.Answer), mergeSuggestions(out.Suggestions, defaults)
		}
		if err == nil {
			err = fmt.Errorf("empty answer")
		}
		a.logger.WithError(err).Warn("AI answer generation failed, using rule-based answer")
	}
	return a.ruleAnswer(bookmarks), defaults
}

func (a *ChatSearchAgent) ruleAnswer(bookmarks []*domain.Bookmark) string {
	cite := func(i int, b *domain.Bookmark) string {
		title := strings.TrimSpace(b.Title)
		if title == "" {
			title = b.URL
		}
		return fmt.Sprintf("[%d] %s", i+1, title)
	}

	if len(bookmarks) <= maxListedTitles {
		parts := make([]string, len(bookmarks))
		for i, b := range bookmarks {
			parts[i] = cite(i, b)
		}
		return fmt.Sprintf(a.msgs.FoundList, len(bookmarks), strings.Join(parts, a.msgs.ListSeparator))
	}

	parts := make([]string, summarizedTitles)
	for i := 0; i < summarizedTitles; i++ {
		parts[i] = cite(i, bookmarks[i])
	}
	return fmt.Sprintf(a.msgs.FoundSummary, len(bookmarks), strings.Join(parts, a.msgs.ListSeparator), len(bookmarks)-summarizedTitles)
}

func (a *ChatSearchAgent) defaultSuggestions(f SearchFilters, result *SearchResult, shown int) []string {
	var out []string
	if shown == 0 {
		out = append(out, a.msgs.SuggestKeywords)
		if f.TimeRangeDays > 0 {
			out = append(out, a.msgs.SuggestWiderTime)
		}
		if f.SemanticDisabled() {
			out = append(out, a.msgs.SuggestSemantic)
		}
		if f.KeywordDisabled() {
			out = append(out, a.msgs.SuggestKeyword)
		}
		return capSuggestions(out)
	}

	if result != nil && result.Total > shown {
		out = append(out, a.msgs.SuggestMore)
	}
	if f.TimeRangeDays == 0 {
		out = append(out, a.msgs.SuggestLast30)
	}
	if result != nil && result.UsedKeyword && result.UsedSemantic {
		out = append(out, a.msgs.SuggestKeyword, a.msgs.SuggestSemOnly)
	}
	return capSuggestions(out)
}

// mergeSuggestions keeps the model's suggestions and tops them up from
// defaults when fewer than two remain.
func mergeSuggestions(generated, defaults []string) []string {
	var out []string
	for _, s := range generated {
		s = strings.TrimSpace(s)
		if s != "" && !containsFold(out, s) {
			out = append(out, s)
		}
	}
	for _, s := range defaults {
		if len(out) >= minSuggestions {
			break
		}
		if !containsFold(out, s) {
			out = append(out, s)
		}
	}
	return capSuggestions(out)
}

func capSuggestions(s []string) []string {
	if s == nil {
		return []string{}
	}
	if len(s) > maxSuggestions {
		return s[:maxSuggestions]
	}
	return s
}

func (a *ChatSearchAgent) filterPrefix(update SearchFilters) string {
	var b strings.Builder
	if update.TimeRangeDays > 0 {
		fmt.Fprintf(&b, a.msgs.FilterLastDays, update.TimeRangeDays)
	}
	if update.CategoryID != "" {
		b.WriteString(a.msgs.FilterCategory)
	}
	if len(update.Tags) > 0 {
		fmt.Fprintf(&b, a.msgs.FilterTags, strings.Join(update.Tags, " "))
	}
	if update.Domain != "" {
		fmt.Fprintf(&b, a.msgs.FilterDomain, update.Domain)
	}
	if update.SemanticDisabled() {
		b.WriteString(a.msgs.FilterKeyword)
	} else if update.KeywordDisabled() {
		b.WriteString(a.msgs.FilterSemantic)
	}
	return b.String()
}

func answerPrompt(input string, bookmarks []*domain.Bookmark, categories []*domain.Category, state ConversationState) string {
	var b strings.Builder
	if len(state.ShortMemory) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range state.ShortMemory {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\nBookmarks:\n", input)
	for i, bm := range bookmarks {
		fmt.Fprintf(&b, "[%d] %s\nURL: %s\n", i+1, bm.Title, bm.URL)
		if bm.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", bm.Description)
		}
		if path := domain.CategoryPath(categories, bm.CategoryID); len(path) > 0 {
			fmt.Fprintf(&b, "Category: %s\n", strings.Join(path, " / "))
		}
		if len(bm.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(bm.Tags, ", "))
		}
		fmt.Fprintf(&b, "Saved: %s\n\n", bm.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}
