// Package layout turns a flat, ordered pipeline step list that may
// branch into a hierarchical, depth-annotated row sequence for the
// pipeline editor and the run view.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claimsight/claimsight/internal/model"
)

// frame is one open branch on the stack, created by a DecisionPrompt.
type frame struct {
	yesKey string
	noKey  string
}

func (f frame) accepts(route string) bool {
	if f.yesKey == "" && f.noKey == "" {
		// Decision without declared branch keys accepts any route.
		return true
	}
	return route == f.yesKey || route == f.noKey
}

// Rows lays out the ordered step list in a single forward pass,
// maintaining a branch stack and per-depth counters for hierarchical
// numbering.
//
// A step without a route always means "back to root": it closes every
// open branch before being laid out. Structural problems (a route with
// no open branch, a collapse of several nested branches at once) are
// attached as advisory warnings and never stop layout. Depth is the
// stack size at emit time and can never go negative.
func Rows(steps []model.PipelineStepDef) []model.LayoutRow {
	rows := make([]model.LayoutRow, 0, len(steps))
	var stack []frame
	counters := []int{0}

	for _, def := range steps {
		var warnings []string

		if def.AtRoot() {
			if len(stack) > 1 {
				warnings = append(warnings, fmt.Sprintf(
					"implicit merge: closes %d open branches without a merge marker", len(stack)))
			}
			stack = stack[:0]
		} else {
			if len(stack) == 0 {
				warnings = append(warnings, fmt.Sprintf(
					"route %q references a branch but no decision is open", def.Route))
			} else if !routeKnown(stack, def.Route) {
				warnings = append(warnings, fmt.Sprintf(
					"route %q matches no open branch", def.Route))
			}
		}

		depth := len(stack)

		for len(counters) <= depth {
			counters = append(counters, 0)
		}
		counters[depth]++
		for i := depth + 1; i < len(counters); i++ {
			counters[i] = 0
		}

		rows = append(rows, model.LayoutRow{
			Step:     def,
			Depth:    depth,
			Label:    label(counters[:depth+1]),
			Warnings: warnings,
		})

		if def.Type == model.PromptDecision {
			stack = append(stack, frame{yesKey: def.YesKey, noKey: def.NoKey})
		}
	}

	return rows
}

func routeKnown(stack []frame, route string) bool {
	for _, f := range stack {
		if f.accepts(route) {
			return true
		}
	}
	return false
}

func label(counters []int) string {
	parts := make([]string, len(counters))
	for i, c := range counters {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}
