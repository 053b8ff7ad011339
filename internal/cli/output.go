package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"shelfscan/internal/output"

	"github.com/spf13/cobra"
)

var outputFile string

var outputCmd = &cobra.Command{
	Use:   "output",
	Short: "Inspect and correct saved output",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var outputShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the newest saved output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, path, err := loadOutput()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
		return printOutput(cmd.OutOrStdout(), m)
	},
}

var outputEditCmd = &cobra.Command{
	Use:   "edit <image> set <v1,v2,...> | add <pos> <value> | remove <pos>",
	Short: "Correct one scan's numbers and save",
	Long: `Edit changes the sequence of one scan in the newest saved output and
writes the result to today's output file.

  shelfscan output edit "Shelf 2.png" set 1200,1199,1187
  shelfscan output edit "Shelf 2.png" add 1 1190
  shelfscan output edit "Shelf 2.png" remove 0`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, _, err := loadOutput()
		if err != nil {
			return err
		}
		id := matchKey(edits, args[0])
		if err := applyEdit(edits, id, args[1], args[2:]); err != nil {
			return err
		}

		settings, err := loadSettings()
		if err != nil {
			return err
		}
		path, err := output.Save(output.Generate(edits, nil), settings.Paths.Output, now())
		if err != nil {
			return err
		}
		vals, _ := edits.Get(id)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v (saved to %s)\n", id, vals, path)
		return nil
	},
}

func loadOutput() (*output.Map, string, error) {
	path := outputFile
	if path == "" {
		settings, err := loadSettings()
		if err != nil {
			return nil, "", err
		}
		path, err = output.Latest(settings.Paths.Output)
		if err != nil {
			return nil, "", err
		}
		if path == "" {
			return nil, "", errors.New("no saved output; run process first")
		}
	}
	m, err := output.Load(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}

// matchKey accepts a full key or a key's trailing file name.
func matchKey(m *output.Map, name string) string {
	for _, k := range m.Keys() {
		if k == name || strings.HasSuffix(k, "/"+name) || strings.HasSuffix(k, "\\"+name) {
			return k
		}
	}
	return name
}

func applyEdit(m *output.Map, id, op string, args []string) error {
	switch op {
	case "set":
		vals, err := parseInts(args[0])
		if err != nil {
			return err
		}
		m.Set(id, vals)
		return nil
	case "add":
		if len(args) != 2 {
			return errors.New("add needs a position and a value")
		}
		pos, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return m.AddValue(id, pos, v)
	case "remove":
		pos, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		return m.RemoveValue(id, pos)
	default:
		return fmt.Errorf("unknown edit %q (want set, add or remove)", op)
	}
}

func parseInts(s string) ([]int, error) {
	vals := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func printOutput(w io.Writer, m *output.Map) error {
	for _, id := range m.Keys() {
		vals, _ := m.Get(id)
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = strconv.Itoa(v)
		}
		if _, err := fmt.Fprintf(w, "%-40s %s\n", id, strings.Join(strs, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(outputCmd)
	outputCmd.AddCommand(outputShowCmd, outputEditCmd)
	outputCmd.PersistentFlags().StringVar(&outputFile, "file", "", "output file (default is the newest in paths.output)")
}
