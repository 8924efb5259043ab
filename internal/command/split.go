package command

import "strings"

// SplitN splits s on the first n single spaces. The remainder, spaces and
// all, is kept verbatim as the last field. When s holds fewer than n spaces
// only the fields present are returned; nothing is padded. An empty s
// yields no fields.
//
//	SplitN("!prompt save public standup Prompt: be brief", 4)
//	=> ["!prompt", "save", "public", "standup", "Prompt: be brief"]
func SplitN(s string, n int) []string {
	if s == "" {
		return nil
	}
	return strings.SplitN(s, " ", n+1)
}

// field returns fields[i] or "" when the message was too short.
func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}
