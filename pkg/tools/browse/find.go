package browse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/types"
)

// maxFindMatches caps how many matches one find call returns.
const maxFindMatches = 20

// FindTool locates elements on the page matching a natural-language query.
// The accessibility snapshot is sent to the model with a constrained
// response grammar, and the response is parsed back into structured matches.
type FindTool struct{}

// NewFindTool creates the find tool.
func NewFindTool() *FindTool { return &FindTool{} }

func (t *FindTool) Name() string { return "find" }

func (t *FindTool) Description() string {
	return "Find elements on the current page matching a description, returning element references, positions, and roles."
}

func (t *FindTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "What to look for, e.g. 'the login button' or 'links to product pages'",
		},
	}, []string{"query"})
}

type findInput struct {
	Query string `json:"query"`
}

// Match is one element located by find.
type Match struct {
	Ref    string
	Role   string
	Name   string
	Type   string
	X, Y   int
	Reason string
}

// findSystemPrompt fixes the response grammar so the output parses
// mechanically. Anything off-grammar is dropped.
const findSystemPrompt = `You locate elements in a page accessibility snapshot.

Respond ONLY in this exact format, nothing else:

Line 1: "FOUND: <n>" where <n> is the number of matches you list (0 if none).
Then one line per match, at most ` + "20" + ` lines:
<ref> | <role> | <name> | <type> | <x>,<y> | <reason>

If more matches exist than you list, end with a final line:
MORE: <count of additional matches>

Use the ref, role, name, and coordinates exactly as they appear in the snapshot. <reason> is a short phrase explaining why the element matches.`

func (t *FindTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	var input findInput
	if err := decodeInput(inv.Input, &input); err != nil {
		return validationError(t.Name(), err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return validationError(t.Name(), fmt.Errorf("query is required"))
	}

	if blocked := checkGate(ctx, env, t.Name(), inv, nil); blocked != nil {
		return blocked
	}

	snapshot, err := env.Session.Scripts().AccessibilitySnapshot(ctx)
	if err != nil {
		return errResult("failed to read page: %v", err)
	}
	if snapshot == "" {
		return textResult("FOUND: 0. The page has no readable content.")
	}

	if url, err := env.Session.URL(ctx); err == nil {
		if host, err := permission.HostFromURL(url); err == nil {
			env.RecordSnapshotHost(host)
		}
	}

	if env.Finder == nil {
		return errResult("find is unavailable: no element-matching model configured")
	}

	prompt := fmt.Sprintf("Query: %s\n\nPage snapshot:\n%s", input.Query, snapshot)
	response, err := env.Finder.Complete(ctx, &llm.Request{
		System:   findSystemPrompt,
		Messages: []*types.Message{types.NewUserMessage(prompt)},
	})
	if err != nil {
		return errResult("element matching failed: %v", err)
	}

	matches, more, err := parseFindResponse(response.Text())
	if err != nil {
		return errResult("element matching returned an unparseable response: %v", err)
	}

	return &Result{Output: formatMatches(input.Query, matches, more)}
}

// parseFindResponse parses the constrained grammar back into matches.
// Off-grammar lines are skipped rather than failing the whole response.
func parseFindResponse(text string) ([]Match, int, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return nil, 0, fmt.Errorf("empty response")
	}

	header := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(header, "FOUND:") && !strings.HasPrefix(header, "SHOWING:") {
		return nil, 0, fmt.Errorf("missing FOUND header")
	}

	var matches []Match
	more := 0
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "MORE:"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				more = n
			}
			continue
		}
		match, ok := parseMatchLine(line)
		if !ok {
			continue
		}
		if len(matches) >= maxFindMatches {
			more++
			continue
		}
		matches = append(matches, match)
	}
	return matches, more, nil
}

// parseMatchLine parses one "ref | role | name | type | x,y | reason" line.
func parseMatchLine(line string) (Match, bool) {
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		return Match{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	coords := strings.SplitN(parts[4], ",", 2)
	if len(coords) != 2 {
		return Match{}, false
	}
	x, errX := strconv.Atoi(strings.TrimSpace(coords[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(coords[1]))
	if errX != nil || errY != nil {
		return Match{}, false
	}

	return Match{
		Ref:    parts[0],
		Role:   parts[1],
		Name:   parts[2],
		Type:   parts[3],
		X:      x,
		Y:      y,
		Reason: parts[5],
	}, true
}

// formatMatches renders matches for the tool result.
func formatMatches(query string, matches []Match, more int) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No elements found matching %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d element(s) matching %q:\n", len(matches), query)
	for _, m := range matches {
		fmt.Fprintf(&b, "%s | %s | %s | %s | %d,%d | %s\n", m.Ref, m.Role, m.Name, m.Type, m.X, m.Y, m.Reason)
	}
	if more > 0 {
		fmt.Fprintf(&b, "...and %d more match(es) not shown. Refine the query to narrow results.", more)
	}
	return strings.TrimRight(b.String(), "\n")
}
