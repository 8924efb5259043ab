package llm

// TrimMessages drops the oldest turns of a conversation until the estimated
// token count fits maxTokens. The newest turn always survives, even when it
// alone is over budget.
//
// A turn is a single message, except that an assistant message carrying tool
// calls owns the tool results that follow it: the pair is kept or dropped
// together so the provider never sees a dangling tool result.
func TrimMessages(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	spans := turnSpans(messages)
	total := 0
	for _, s := range spans {
		total += s.tokens
	}
	if total <= maxTokens {
		return messages
	}

	first := 0
	for first < len(spans)-1 && total > maxTokens {
		total -= spans[first].tokens
		first++
	}
	return messages[spans[first].start:]
}

// turnSpan marks messages[start:end] as one indivisible turn.
type turnSpan struct {
	start, end int
	tokens     int
}

func turnSpans(messages []Message) []turnSpan {
	var spans []turnSpan
	for i := 0; i < len(messages); {
		span := turnSpan{start: i}
		span.tokens += EstimateMessageTokens(messages[i])
		owner := messages[i].Role == "assistant" && len(messages[i].ToolCalls) > 0
		i++
		for owner && i < len(messages) && messages[i].ToolCallID != "" {
			span.tokens += EstimateMessageTokens(messages[i])
			i++
		}
		span.end = i
		spans = append(spans, span)
	}
	return spans
}
