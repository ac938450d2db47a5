// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package ranking

import (
	"encoding/json"
	"strings"
)

// rankedEntry is one element of the model's JSON array. Pointer fields
// distinguish absent from zero so incomplete entries can be dropped.
type rankedEntry struct {
	Rank           *int     `json:"rank"`
	CandidateIndex *int     `json:"candidateIndex"`
	Confidence     *float64 `json:"confidence"`
	Rationale      *string  `json:"rationale"`
}

func (e rankedEntry) complete() bool {
	return e.Rank != nil && e.CandidateIndex != nil && e.Confidence != nil &&
		e.Rationale != nil && *e.Rationale != ""
}

// parseRankedEntries extracts the first JSON array from a model response and
// returns its complete entries, at most limit. Markdown fences and reasoning
// blocks around the array are tolerated; anything unparseable yields nil.
func parseRankedEntries(response string, limit int) []rankedEntry {
	raw, ok := firstJSONArray(stripFences(response))
	if !ok {
		return nil
	}

	var entries []rankedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	kept := make([]rankedEntry, 0, limit)
	for _, e := range entries {
		if !e.complete() {
			continue
		}
		kept = append(kept, e)
		if len(kept) == limit {
			break
		}
	}
	return kept
}

// stripFences removes markdown code fences (```json ... ```) and
// <think>...</think> reasoning blocks from model output.
func stripFences(s string) string {
	s = stripThinkBlocks(strings.TrimSpace(s))
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// stripThinkBlocks removes <think>...</think> blocks emitted by reasoning
// models before their structured output.
func stripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// firstJSONArray returns the first balanced top-level JSON array in s. The
// scan tracks string literals and escapes so brackets inside rationales do
// not unbalance the depth count.
func firstJSONArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
