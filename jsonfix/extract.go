// Package jsonfix recovers JSON objects from raw model output: it strips
// narrative and code fences, closes brackets left open by truncation and
// offers defensive field readers over the result.
package jsonfix

import "strings"

const fence = "```"

// Extract returns the JSON object candidate embedded in raw model output.
//
// When a fenced block is present only the content between the first fence
// and the next one is considered. Within that slice the text from the first
// '{' to the last '}' is returned. Output cut off before its closing brace
// yields everything from the first '{' on, so the repairer can still see it.
// Text without any '{' is returned unchanged and left for the parser to reject.
func Extract(raw string) string {
	s := raw
	if i := strings.Index(s, fence); i >= 0 {
		body := s[i+len(fence):]
		if j := strings.Index(body, fence); j >= 0 {
			body = body[:j]
		}
		s = trimInfoString(body)
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// trimInfoString drops a language tag such as "json" that follows an opening fence.
func trimInfoString(body string) string {
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return body
	}
	tag := strings.TrimSpace(body[:nl])
	if tag == "" || strings.ContainsAny(tag, "{}[]\"") {
		return body
	}
	return body[nl+1:]
}
