package client

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/spf13/cobra"
)

const replHelp = `Type a question to search your bookmarks. Commands:
  :more           show more results for the last query
  :days N         only bookmarks from the last N days
  :tag NAME       only bookmarks tagged NAME
  :semantic on|off
  :reset          start a new conversation
  :quit           exit`

type chatAPI interface {
	Chat(input string, state service.ConversationState) (*handlers.ChatResponse, error)
	Continue(state service.ConversationState) (*handlers.ChatResponse, error)
	Filter(filters service.SearchFilters, state service.ConversationState) (*handlers.ChatResponse, error)
}

// ChatCmd starts an interactive conversation with the search agent.
func ChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Search bookmarks conversationally",
		Long:  "Starts an interactive session. Follow-up questions keep the filters and\nskip bookmarks already shown.\n\n" + replHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			session := newChatSession(api, cmd.OutOrStdout())
			return session.run(cmd.InOrStdin())
		},
	}
}

type chatSession struct {
	api     chatAPI
	tracker *service.ConversationTracker
	out     io.Writer
}

func newChatSession(api chatAPI, out io.Writer) *chatSession {
	return &chatSession{api: api, tracker: service.NewConversationTracker(), out: out}
}

func (s *chatSession) run(in io.Reader) error {
	fmt.Fprintln(s.out, replHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.handle(scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// handle processes one input line. It reports whether the session should end.
func (s *chatSession) handle(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, s.turn(func(state service.ConversationState) (*handlers.ChatResponse, error) {
			return s.api.Chat(line, state)
		})
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true, nil
	case ":help", ":h":
		fmt.Fprintln(s.out, replHelp)
		return false, nil
	case ":reset":
		s.tracker.Reset()
		fmt.Fprintln(s.out, "Conversation reset.")
		return false, nil
	case ":more":
		if s.tracker.State().LastQuery == "" {
			return false, fmt.Errorf("nothing to continue yet")
		}
		return false, s.turn(s.api.Continue)
	case ":days":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :days N")
		}
		days, err := strconv.Atoi(fields[1])
		if err != nil || days < 1 {
			return false, fmt.Errorf("days must be a positive number")
		}
		return false, s.filter(service.SearchFilters{TimeRangeDays: days})
	case ":tag":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: :tag NAME")
		}
		return false, s.filter(service.SearchFilters{Tags: fields[1:]})
	case ":semantic":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, fmt.Errorf("usage: :semantic on|off")
		}
		return false, s.filter(service.SearchFilters{Semantic: service.BoolPtr(fields[1] == "on")})
	}
	return false, fmt.Errorf("unknown command %s (try :help)", fields[0])
}

func (s *chatSession) filter(update service.SearchFilters) error {
	return s.turn(func(state service.ConversationState) (*handlers.ChatResponse, error) {
		return s.api.Filter(update, state)
	})
}

// turn runs one request against the current state and prints the reply
// unless a newer request or a reset superseded it.
func (s *chatSession) turn(call func(service.ConversationState) (*handlers.ChatResponse, error)) error {
	token, state := s.tracker.Begin()
	resp, err := call(state)
	if err != nil {
		return err
	}
	if !s.tracker.Commit(token, resp.State) {
		return nil
	}
	printChatResponse(s.out, resp)
	return nil
}

func printChatResponse(w io.Writer, resp *handlers.ChatResponse) {
	fmt.Fprintln(w, resp.Response)
	for i, b := range resp.Bookmarks {
		fmt.Fprintf(w, "  [%d] %s\n      %s\n", i+1, b.Title, b.URL)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(w, "Try: %s\n", strings.Join(resp.Suggestions, " | "))
	}
}
