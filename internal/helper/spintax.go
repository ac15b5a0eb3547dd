package helper

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// pickOption is swapped in tests for deterministic spintax.
var pickOption = rand.Intn

var now = time.Now

// RenderMessage expands one message variant for a single contact:
//
//	{TIME_GREETING} {DAY_NAME} {DATE}  built-in time variables
//	{column}                           value of that column in vars (case-insensitive)
//	{a|b|c}                            one option at random
//
// Tokens that match none of these are left untouched.
func RenderMessage(text string, vars map[string]string) string {
	lookup := make(map[string]string, len(vars)+3)
	for k, v := range dynamicVariables(now()) {
		lookup[k] = v
	}
	for k, v := range vars {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var b strings.Builder
	b.Grow(len(text))

	rest := text
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			b.WriteString(rest)
			break
		}
		end += start

		// a nested '{' restarts the token at the innermost brace
		if inner := strings.LastIndexByte(rest[start:end], '{'); inner > 0 {
			b.WriteString(rest[:start+inner])
			rest = rest[start+inner:]
			continue
		}

		b.WriteString(rest[:start])
		b.WriteString(expandToken(rest[start+1:end], lookup))
		rest = rest[end+1:]
	}
	return b.String()
}

func expandToken(token string, lookup map[string]string) string {
	if strings.Contains(token, "|") {
		options := strings.Split(token, "|")
		return options[pickOption(len(options))]
	}
	if v, ok := lookup[strings.ToLower(strings.TrimSpace(token))]; ok {
		return v
	}
	return "{" + token + "}"
}

func dynamicVariables(t time.Time) map[string]string {
	hour := t.Hour()
	var timeGreeting string
	switch {
	case hour >= 5 && hour < 12:
		timeGreeting = "Morning"
	case hour >= 12 && hour < 17:
		timeGreeting = "Afternoon"
	case hour >= 17 && hour < 21:
		timeGreeting = "Evening"
	default:
		timeGreeting = "Night"
	}

	return map[string]string{
		"time_greeting": timeGreeting,
		"day_name":      t.Weekday().String(),
		"date":          fmt.Sprintf("%d %s %d", t.Day(), t.Month().String(), t.Year()),
	}
}
