package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
)

const promptDescription = `Manage saved prompts (save, view, delete)

        📌 **Writing good prompts**:
        • 🔹 A prompt **must start with**: ` + "`Prompt:`" + `
        • Phrase it as a clear task or role: "Prompt: You are a data analyst. Answer the user..."
        • Say what to do when the goal is missing: "If no goal is given, ask for it."
        • Rules and examples keep the model's behaviour stable
        • Skip background the model does not need

        💡 Apply a saved prompt in a thread with ` + "`@bot <name> [extra context]`"

func (h *handlers) promptCommand() Command {
	return Command{
		Name:        "!prompt",
		Description: promptDescription,
		Example:     "\n1. !prompt save <public|private> <name> <text>\n2. !prompt list\n3. !prompt get <name>\n4. !prompt delete <name>",
		Scopes:      []chat.ChannelType{chat.Direct},
		Handler:     h.prompt,
	}
}

func (h *handlers) prompt(ctx context.Context, req Request) (Result, error) {
	fields := SplitN(req.Text, 4)
	action, typeOrName, name, text := field(fields, 1), field(fields, 2), field(fields, 3), field(fields, 4)

	switch {
	case action == "save" && typeOrName != "" && name != "" && text != "":
		return h.savePrompt(ctx, req.SenderName, strings.ToLower(typeOrName), name, text)
	case action == "list":
		return h.listPrompts(ctx, req.SenderName)
	case action == "get" && typeOrName != "":
		return h.getPrompt(ctx, req.SenderName, typeOrName)
	case action == "delete" && typeOrName != "":
		return h.deletePrompt(ctx, req.SenderName, typeOrName)
	}
	return notice(badFormat), nil
}

func (h *handlers) savePrompt(ctx context.Context, user, visibility, name, text string) (Result, error) {
	if visibility != db.VisibilityPublic && visibility != db.VisibilityPrivate {
		return notice("⚠️ Prompt type must be `public` or `private`."), nil
	}
	if h.Prompts.IsBuiltin(name) {
		return notice(fmt.Sprintf("⚠️ A prompt named **%s** already exists.", name)), nil
	}
	existing, err := h.Store.GetPrompt(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("checking prompt %s: %w", name, err)
	}
	if existing != nil {
		return notice(fmt.Sprintf("⚠️ A prompt named **%s** already exists.", name)), nil
	}
	if _, err := h.Store.CreatePrompt(ctx, name, text, visibility, user); err != nil {
		return Result{}, fmt.Errorf("saving prompt %s: %w", name, err)
	}
	return notice(fmt.Sprintf("✅ Prompt **%s** (%s) saved.\n👤 **Author**: %s", name, visibility, user)), nil
}

func (h *handlers) listPrompts(ctx context.Context, user string) (Result, error) {
	stored, err := h.Store.ListVisiblePrompts(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("listing prompts: %w", err)
	}
	all := append(h.Prompts.Builtins(), stored...)
	items := make([]string, 0, len(all))
	for _, p := range all {
		items = append(items, fmt.Sprintf("📌 **%s** (%s)\n👤 **Author**: %s", p.Name, p.Visibility, p.CreatedBy))
	}
	return notice("📖 **Available prompts:**\n\n" + strings.Join(items, "\n\n")), nil
}

func (h *handlers) getPrompt(ctx context.Context, user, name string) (Result, error) {
	p := h.Prompts.Builtin(name)
	if p == nil {
		var err error
		if p, err = h.Store.GetPrompt(ctx, name); err != nil {
			return Result{}, fmt.Errorf("loading prompt %s: %w", name, err)
		}
	}
	if p == nil {
		return notice(fmt.Sprintf("⚠️ Prompt **%s** not found.", name)), nil
	}
	if p.Visibility == db.VisibilityPrivate && p.CreatedBy != user {
		return notice("⛔ You do not have access to this prompt."), nil
	}
	return notice(fmt.Sprintf("📌 **%s** (%s)\n👤 **Author**: %s\n📝 **Text:**\n%s", p.Name, p.Visibility, p.CreatedBy, p.Text)), nil
}

func (h *handlers) deletePrompt(ctx context.Context, user, name string) (Result, error) {
	if h.Prompts.IsBuiltin(name) {
		return notice("⛔ Built-in prompts cannot be deleted."), nil
	}
	p, err := h.Store.GetPrompt(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("loading prompt %s: %w", name, err)
	}
	if p == nil {
		return notice(fmt.Sprintf("⚠️ Prompt **%s** not found.", name)), nil
	}
	if p.CreatedBy != user {
		return notice("⛔ You can only delete your own prompts."), nil
	}
	if err := h.Store.DeletePrompt(ctx, name); err != nil {
		return Result{}, fmt.Errorf("deleting prompt %s: %w", name, err)
	}
	return notice(fmt.Sprintf("🗑 Prompt **%s** deleted.", name)), nil
}
