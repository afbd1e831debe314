// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import "strings"

// toolNameSeparator joins the segments of a namespaced tool name,
// "provider__server__tool". Built-in tools carry bare names without
// the separator and are outside the gate's jurisdiction.
const toolNameSeparator = "__"

// ToolCall identifies one namespaced tool invocation.
type ToolCall struct {
	// Provider is the integration namespace, e.g. "mcp".
	Provider string

	// Server is the logical server ID the policy document keys on.
	Server string

	// Tool is the tool name within the server.
	Tool string
}

// ParseToolName splits a namespaced tool identifier into its three
// segments. The third segment keeps any further separators, so tool
// names containing "__" survive intact. Returns ok=false for names
// the gate does not apply to: bare built-in tools and malformed
// namespaced names with empty segments.
func ParseToolName(name string) (ToolCall, bool) {
	if !strings.Contains(name, toolNameSeparator) {
		return ToolCall{}, false
	}

	segments := strings.SplitN(name, toolNameSeparator, 3)
	if len(segments) != 3 {
		return ToolCall{}, false
	}
	for _, segment := range segments {
		if segment == "" {
			return ToolCall{}, false
		}
	}
	return ToolCall{
		Provider: segments[0],
		Server:   segments[1],
		Tool:     segments[2],
	}, true
}

// String reassembles the namespaced form.
func (c ToolCall) String() string {
	return c.Provider + toolNameSeparator + c.Server + toolNameSeparator + c.Tool
}
