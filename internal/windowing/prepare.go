package windowing

import (
	"errors"

	"github.com/petasbytes/toolchat/memory"
)

// ErrOverBudget is returned by callers when the newest group alone exceeds the budget.
var ErrOverBudget = errors.New("windowing: newest group exceeds token budget")

// Stats summarizes the result of window preparation.
//
// Fields:
// - Total: estimated tokens for included groups only.
// - Budget: the input token budget used.
// - IncludedGroups: number of groups included.
// - SkippedGroups: total groups minus IncludedGroups.
// - OverBudgetNewest: true when the newest single group alone exceeds Budget.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns a subslice of msgs (oldest→newest) that fits within
// budget using the TokenCounter, without splitting groups.
//
// Rules:
// - Include whole groups scanning newest→oldest while total ≤ budget.
// - If the newest group alone exceeds budget, return an empty window and set OverBudgetNewest.
// - If budget ≤ 0, return an empty window (OverBudgetNewest set when any groups exist).
// - The window opens on a user message; leading model or function groups are skipped.
//   When no user group fits, the result is the same as an over-budget newest group.
func PrepareSendWindow(msgs []memory.Message, budget int, c TokenCounter) ([]memory.Message, Stats) {
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}

	groups := GroupBlocks(msgs)

	if budget <= 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	costs := make([]int, len(groups))
	for i, g := range groups {
		costs[i] = c.CountGroup(g, msgs)
	}

	total := 0
	startIdx := len(groups) // exclusive sentinel; lowered as groups are included

	for gi := len(groups) - 1; gi >= 0; gi-- {
		if startIdx == len(groups) && costs[gi] > budget {
			vlogf("reason=over_budget_newest_group budget=%d cost=%d", budget, costs[gi])
			return nil, Stats{
				Budget:           budget,
				SkippedGroups:    len(groups),
				OverBudgetNewest: true,
			}
		}
		if total+costs[gi] > budget {
			break
		}
		total += costs[gi]
		startIdx = gi
	}

	// Skip leading groups that do not start with a user message.
	for startIdx < len(groups)-1 && msgs[groups[startIdx].Start].Role != memory.RoleUser {
		vlogf("reason=leading_non_user_group idx=%d", groups[startIdx].Start)
		total -= costs[startIdx]
		startIdx++
	}

	// A lone newest group that is not a user message cannot open a window.
	if msgs[groups[startIdx].Start].Role != memory.RoleUser {
		vlogf("reason=no_user_group_fits budget=%d", budget)
		return nil, Stats{
			Budget:           budget,
			SkippedGroups:    len(groups),
			OverBudgetNewest: true,
		}
	}

	included := len(groups) - startIdx
	return msgs[groups[startIdx].Start:], Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
	}
}
