package mcpcore

import "fmt"

// Content is one item of a tool result. Only text content is produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent returns a text content item.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// CallResult is the envelope returned for every tool invocation.
type CallResult struct {
	Content []Content `json:"content"`
	// IsError marks envelopes synthesized from a failure. The response
	// itself is still successful.
	IsError bool `json:"isError,omitempty"`
}

// Text returns a result holding a single text item.
func Text(text string) *CallResult {
	return &CallResult{Content: []Content{TextContent(text)}}
}

// Textf is like Text with fmt.Sprintf formatting.
func Textf(format string, args ...any) *CallResult {
	return Text(fmt.Sprintf(format, args...))
}

// ErrorText returns an error envelope holding a single text item.
func ErrorText(text string) *CallResult {
	return &CallResult{Content: []Content{TextContent(text)}, IsError: true}
}

// String concatenates the text of all content items.
func (r *CallResult) String() string {
	if r == nil {
		return ""
	}
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var s string
	for i, c := range r.Content {
		if i > 0 {
			s += "\n"
		}
		s += c.Text
	}
	return s
}

// ResourceContents is the body of one resource read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// ReadResult is the envelope returned for every resource read.
type ReadResult struct {
	Contents []ResourceContents `json:"contents"`
}

func readResult(uri, mimeType, text string) *ReadResult {
	return &ReadResult{Contents: []ResourceContents{{URI: uri, MimeType: mimeType, Text: text}}}
}

// String returns the text of the first contents item.
func (r *ReadResult) String() string {
	if r == nil || len(r.Contents) == 0 {
		return ""
	}
	return r.Contents[0].Text
}
