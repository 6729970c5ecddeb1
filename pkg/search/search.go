// Package search ranks stored chat messages against a free-form query.
package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/codeforge-ai/codeforge/internal/store"
)

// scoreThreshold filters out matches too weak to be useful.
const scoreThreshold = 0.3

// maxResults caps how many matches a search returns.
const maxResults = 10

// Match is one scored search hit.
type Match struct {
	Message store.Message `json:"message"`
	Score   float64       `json:"score"`
}

// Messages ranks messages by similarity to the query using a blend of
// global Levenshtein distance and token-wise fuzzy matching, so both
// near-exact phrases and keyword-bag queries find their target.
func Messages(query string, messages []store.Message) []Match {
	if query == "" || len(messages) == 0 {
		return nil
	}

	queryLower := strings.ToLower(query)
	queryTokens := tokenize(queryLower)

	var matches []Match
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		score := calculateScore(queryLower, queryTokens, m.Content)
		if score > scoreThreshold {
			matches = append(matches, Match{Message: m, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// calculateScore returns a similarity score between 0 and 1. It
// combines exact match, Levenshtein distance, and token-wise fuzzy
// matching.
func calculateScore(queryLower string, queryTokens map[string]bool, content string) float64 {
	contentLower := strings.ToLower(content)

	// 1. Exact match bonus
	if queryLower == contentLower {
		return 1.0
	}
	if strings.Contains(contentLower, queryLower) {
		return 0.95 // Substring match is very strong
	}

	// 2. Levenshtein similarity (global). Good for near-exact queries.
	levDist := levenshtein.Distance(queryLower, contentLower, nil)
	maxLen := float64(len(queryLower))
	if len(contentLower) > int(maxLen) {
		maxLen = float64(len(contentLower))
	}
	globalLevScore := 1.0 - (float64(levDist) / maxLen)
	if globalLevScore < 0 {
		globalLevScore = 0
	}

	// 3. Token-wise matching. Handles keyword bags ("zip download
	// error" vs a long assistant reply) and typos within a keyword.
	contentTokens := tokenize(contentLower)

	totalTokenScore := 0.0
	for qToken := range queryTokens {
		bestTokenScore := 0.0
		if contentTokens[qToken] {
			bestTokenScore = 1.0
		} else {
			for cToken := range contentTokens {
				dist := levenshtein.Distance(qToken, cToken, nil)
				tMax := float64(len(qToken))
				if len(cToken) > int(tMax) {
					tMax = float64(len(cToken))
				}
				score := 1.0 - (float64(dist) / tMax)
				if score > bestTokenScore {
					bestTokenScore = score
				}
			}
		}
		totalTokenScore += bestTokenScore
	}

	tokenScore := 0.0
	if len(queryTokens) > 0 {
		tokenScore = totalTokenScore / float64(len(queryTokens))
	}

	return math.Max(globalLevScore, tokenScore)
}

// tokenize splits a string into unique tokens, handling camelCase,
// snake_case, and standard separators.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	var currentToken strings.Builder

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			if currentToken.Len() > 0 {
				token := strings.ToLower(currentToken.String())
				if len(token) > 2 { // Filter out very short noise tokens
					tokens[token] = true
				} else if len(s) < 10 { // Keep short tokens for short strings
					tokens[token] = true
				}
				currentToken.Reset()
			}
		} else {
			// Handle camelCase: separate if uppercase
			if unicode.IsUpper(r) && currentToken.Len() > 0 {
				tokens[strings.ToLower(currentToken.String())] = true
				currentToken.Reset()
			}
			currentToken.WriteRune(r)
		}
	}
	if currentToken.Len() > 0 {
		tokens[strings.ToLower(currentToken.String())] = true
	}
	return tokens
}
