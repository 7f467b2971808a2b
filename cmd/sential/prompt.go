package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
)

// errNotInteractive is returned when a prompt would be needed but stdin is
// not a terminal.
var errNotInteractive = errors.New("stdin is not a terminal")

// isInteractive reports whether f is attached to a terminal.
func isInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// prompter reads numbered answers. One bufio.Reader is shared across
// prompts so buffered input is not lost between questions.
//
// Reads happen on a goroutine so a prompt returns as soon as its context
// ends. A line still being read when that happens stays pending and is
// delivered to the next prompt.
type prompter struct {
	r       *bufio.Reader
	w       io.Writer
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func newPrompter(r io.Reader, w io.Writer) *prompter {
	return &prompter{r: bufio.NewReader(r), w: w}
}

// readLine returns the next line without its terminator, or ctx.Err() once
// ctx is done. A final line without newline is returned as-is; io.EOF only
// when nothing was read.
func (p *prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch
		go func() {
			line, err := p.r.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				ch <- lineResult{err: err}
				return
			}
			ch <- lineResult{line: strings.TrimSpace(line)}
		}()
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.pending:
		p.pending = nil
		return res.line, res.err
	}
}

// promptYesNo prints a question and reads Y/n. Returns true for yes, which
// is also the answer on EOF.
func (p *prompter) promptYesNo(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(p.w, "%s ", question)
	answer, err := p.readLine(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return true, nil
	}
	answer = strings.ToLower(answer)
	return answer == "" || answer == "y" || answer == "yes", nil
}

// promptScope prints scope options and reads 1/2/3.
// Returns "project", "user", or "" (skip).
func (p *prompter) promptScope(ctx context.Context, agentName string) (string, error) {
	fmt.Fprintf(p.w, "\n%s: add sential MCP server?\n", agentName)
	fmt.Fprintln(p.w, "  [1] Project scope (shared with team)")
	fmt.Fprintln(p.w, "  [2] User scope (personal, global)")
	fmt.Fprintln(p.w, "  [3] Skip")
	fmt.Fprintf(p.w, "  > ")

	answer, err := p.readLine(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "project", nil
	}
	switch answer {
	case "1", "":
		return "project", nil
	case "2":
		return "user", nil
	default:
		return "", nil
	}
}

// promptLanguage lists the supported languages and reads a number or a
// language name.
func (p *prompter) promptLanguage(ctx context.Context) (heuristics.Language, error) {
	langs := heuristics.Languages()
	fmt.Fprintln(p.w, "Select the primary language:")
	for i, lang := range langs {
		fmt.Fprintf(p.w, "  [%d] %s\n", i+1, lang)
	}
	fmt.Fprintf(p.w, "  > ")

	answer, err := p.readLine(ctx)
	if err != nil {
		return "", fmt.Errorf("read language: %w", err)
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(langs) {
			return "", fmt.Errorf("%w: choice %d out of range", heuristics.ErrUnsupportedLanguage, n)
		}
		return langs[n-1], nil
	}
	return heuristics.ParseLanguage(answer)
}

// SelectScopes implements discovery.Selector. Answers are choice numbers
// separated by spaces or commas; an empty answer selects nothing.
func (p *prompter) SelectScopes(ctx context.Context, choices []discovery.Choice) ([]discovery.Choice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fmt.Fprintln(p.w, "Select the modules to include (e.g. 2 4, or 1 for everything):")
	for i, c := range choices {
		fmt.Fprintf(p.w, "  [%d] %s\n", i+1, c.Label)
	}
	fmt.Fprintf(p.w, "  > ")

	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return parseSelection(answer, choices)
}

// parseSelection maps a list of 1-based choice numbers onto choices,
// ignoring repeats.
func parseSelection(answer string, choices []discovery.Choice) ([]discovery.Choice, error) {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := make(map[int]bool, len(fields))
	var out []discovery.Choice
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(choices) {
			return nil, fmt.Errorf("invalid choice %q", f)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, choices[n-1])
	}
	return out, nil
}
