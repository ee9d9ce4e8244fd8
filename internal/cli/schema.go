// Package cli holds what the server and client command trees share: command
// groups and the --help-json schema dump used by scripts and agents.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	GroupServer = "server"
	GroupClient = "client"

	helpJSONFlag = "help-json"
)

// AddGroups registers the server and client command groups on root.
func AddGroups(root *cobra.Command) {
	root.AddGroup(
		&cobra.Group{ID: GroupServer, Title: "Server Commands (database access):"},
		&cobra.Group{ID: GroupClient, Title: "Client Commands (talk to a running server):"},
	)
}

// InGroup sets the group of each command and returns them for AddCommand.
func InGroup(group string, cmds ...*cobra.Command) []*cobra.Command {
	for _, c := range cmds {
		c.GroupID = group
	}
	return cmds
}

type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Persistent  bool   `json:"persistent,omitempty"`
}

// ArgSchema is a positional argument parsed from the command's Use line:
// <name> is required, [name] optional, a trailing ... repeats.
type ArgSchema struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Variadic bool   `json:"variadic,omitempty"`
}

type CommandSchema struct {
	Name        string          `json:"name"`
	Group       string          `json:"group,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Args        []ArgSchema     `json:"args,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// GenerateSchema describes cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Group:       cmd.GroupID,
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Long:        cmd.Long,
		Args:        parseArgs(cmd.Use),
		Flags:       commandFlags(cmd),
	}
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}
	return schema
}

func parseArgs(use string) []ArgSchema {
	fields := strings.Fields(use)
	if len(fields) < 2 {
		return nil
	}
	var args []ArgSchema
	for _, f := range fields[1:] {
		variadic := strings.HasSuffix(f, "...")
		f = strings.TrimSuffix(f, "...")
		switch {
		case strings.HasPrefix(f, "<") && strings.HasSuffix(f, ">"):
			args = append(args, ArgSchema{Name: strings.Trim(f, "<>"), Required: true, Variadic: variadic})
		case strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]"):
			args = append(args, ArgSchema{Name: strings.Trim(f, "[]"), Variadic: variadic})
		}
	}
	return args
}

func commandFlags(cmd *cobra.Command) []FlagSchema {
	persistent := cmd.PersistentFlags()
	var flags []FlagSchema
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == helpJSONFlag || f.Name == "help" || f.Hidden {
			return
		}
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		flags = append(flags, FlagSchema{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
			Description: f.Usage,
			Required:    required,
			Persistent:  persistent.Lookup(f.Name) != nil,
		})
	})
	return flags
}

// AddHelpJSONFlag adds --help-json to root and everything below it.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Print the command schema as JSON")
}

// HandleHelpJSON writes the schema of the command addressed by args when
// they contain --help-json, and reports whether it did. It runs before
// Execute so argument validation never sees the flag.
func HandleHelpJSON(root *cobra.Command, args []string, w io.Writer) (bool, error) {
	for i, arg := range args {
		if arg != "--"+helpJSONFlag {
			continue
		}
		target := root
		if found, _, err := root.Find(args[:i]); err == nil && found != nil {
			target = found
		}
		out, err := json.MarshalIndent(GenerateSchema(target), "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to generate schema: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return true, err
	}
	return false, nil
}

// CheckHelpJSON handles --help-json in os.Args and exits when it was present.
func CheckHelpJSON(root *cobra.Command) {
	handled, err := HandleHelpJSON(root, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}
}
