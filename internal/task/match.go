package task

import (
	"sort"
	"strings"
)

// MatchThreshold is the minimum word-overlap ratio for a fuzzy candidate.
const MatchThreshold = 0.5

// MaxMatches caps how many candidates are surfaced for disambiguation.
const MaxMatches = 5

// Match pairs a task with its fuzzy-match score against a query.
type Match struct {
	Task  *Task
	Score float64
}

// MatchTasks scores tasks against a free-text query.
//
// Scoring: a query that appears as a substring of the description scores 1.0.
// Otherwise the score is the fraction of distinct query words present in
// the description; tasks below MatchThreshold are dropped. Comparison is
// case-insensitive on whitespace-trimmed input.
//
// Results are ordered by score descending. The sort is stable, so tasks with
// equal scores keep their input order.
func MatchTasks(tasks []*Task, query string) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(tasks) == 0 {
		return nil
	}

	// Distinct words only: repeated query words count once.
	queryWords := make(map[string]struct{})
	for _, w := range strings.Fields(query) {
		queryWords[w] = struct{}{}
	}

	var matches []Match
	for _, t := range tasks {
		desc := strings.ToLower(strings.TrimSpace(t.Description))

		if strings.Contains(desc, query) {
			matches = append(matches, Match{Task: t, Score: 1.0})
			continue
		}

		if len(queryWords) == 0 {
			continue
		}
		descWords := make(map[string]struct{})
		for _, w := range strings.Fields(desc) {
			descWords[w] = struct{}{}
		}
		overlap := 0
		for w := range queryWords {
			if _, ok := descWords[w]; ok {
				overlap++
			}
		}
		score := float64(overlap) / float64(len(queryWords))
		if score >= MatchThreshold {
			matches = append(matches, Match{Task: t, Score: score})
		}
	}

	// Stable: input order breaks ties
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}
