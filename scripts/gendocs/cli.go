package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/modelgraph/internal/cli"
	"github.com/leapstack-labs/modelgraph/internal/config"
)

// envVars lists the variables called out on the index page. Any other
// config key works the same way.
var envVars = [][2]string{
	{"PROJECT_DIR", "Project directory"},
	{"MODELS_DIR", "Models directory"},
	{"TESTS_DIR", "Data tests directory"},
	{"MACROS_DIR", "Macros directory"},
	{"STATE_PATH", "State database path"},
	{"OUTPUT", "Output format"},
	{"CACHE__ENABLED", "Set to false to skip the result cache"},
	{"CACHE__TTL", "Lifetime of cached results"},
}

// generateCLIDocs writes index.md and one page per command into outDir.
func generateCLIDocs(outDir string) error {
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := map[string][]byte{"index.md": indexPage(root)}
	for _, cmd := range documented(root) {
		pages[cmd.Name()+".md"] = commandPage(cmd)
	}

	for name, body := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), body, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	log.Printf("wrote %d pages to %s", len(pages), outDir)
	return nil
}

// documented returns the subcommands that get a reference page.
func documented(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func indexPage(root *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for modelgraph")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/modelgraph/cmd/modelgraph@latest\nmodelgraph <command> [flags]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range documented(root) {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name()),
			cleanDescription(cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Flags")
	flagTable(w, root.PersistentFlags())

	w.Header(2, "Configuration")
	w.Paragraph(fmt.Sprintf("Settings are read from %s, then %s environment variables, then flags; "+
		"later layers win. Nested keys use a double underscore.",
		InlineCode(config.ConfigFileName), InlineCode(config.EnvPrefix+"*")))
	env := make([][]string, 0, len(envVars))
	for _, v := range envVars {
		env = append(env, []string{InlineCode(config.EnvPrefix + v[0]), v[1]})
	}
	w.Table([]string{"Variable", "Description"}, env)

	w.Paragraph("Commands exit with status 1 on any error, including validation errors and detected cycles under " +
		InlineCode("--strict") + " or " + InlineCode("--fail") + ".")
	return w.Bytes()
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	w.Paragraph(firstNonEmpty(cmd.Long, cmd.Short))
	w.CodeBlock("bash", cmd.UseLine())

	if len(cmd.Aliases) > 0 {
		w.Paragraph("Aliases: " + InlineCode(strings.Join(cmd.Aliases, ", ")))
	}
	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		flagTable(w, cmd.LocalFlags())
	}
	if cmd.HasInheritedFlags() {
		w.Header(2, "Global Options")
		flagTable(w, cmd.InheritedFlags())
	}
	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w.Bytes()
}

func firstNonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func flagTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name = InlineCode("-"+f.Shorthand) + ", " + name
		}
		def := ""
		switch f.DefValue {
		case "", "[]", "false", "0", "0s":
		default:
			def = InlineCode(f.DefValue)
		}
		rows = append(rows, []string{name, f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Flag", "Type", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		if trimmed := strings.TrimLeft(line, " \t"); trimmed != "" {
			if n := len(line) - len(trimmed); indent < 0 || n < indent {
				indent = n
			}
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
