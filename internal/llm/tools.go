package llm

// AssistantTools are offered to the model only on default-persona replies.
var AssistantTools = []Tool{
	{
		Name:        "get_time",
		Description: "Get the current date and time in the team's timezone. Use it before answering anything about today, deadlines or durations.",
		Parameters:  obj(nil),
	},
	{
		Name:        "search_faq",
		Description: "Search the team FAQ for lines relevant to a question. Use it for questions about internal processes, access, or tooling.",
		Parameters: objReq(map[string]any{
			"query": prop("string", "The question or keywords to look up"),
			"limit": prop("integer", "Maximum number of lines to return (default 3)"),
		}, "query"),
	},
	{
		Name:        "list_prompts",
		Description: "List the prompt names the current user can apply with `@bot <name>` or schedule with !schedule_prompt / !reminder.",
		Parameters:  obj(nil),
	},
}

// Helper functions for building JSON Schema objects.

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func obj(properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func objReq(properties map[string]any, required ...string) map[string]any {
	s := obj(properties)
	s["required"] = required
	return s
}
