package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/threadbot/internal/chat"
)

// faqResults is how many matching lines a query returns.
const faqResults = 2

const faqDescription = `Manage the team FAQ (add, search, delete)

        📌 Usage:
        • !faq <question>: search the FAQ, e.g. ` + "`!faq VPN`" + `
        • !faq add <name> <text>: add an entry; every line of the text is searchable
        • !faq delete <name>: delete an entry
        • !faq list: list all entries`

func (h *handlers) faqCommand() Command {
	return Command{
		Name:        "!faq",
		Description: faqDescription,
		Example:     "\n1. !faq VPN\n2. !faq add VPN Ask IT for a token, then install the client\n3. !faq delete VPN\n4. !faq list",
		Scopes:      []chat.ChannelType{chat.Open, chat.Private, chat.Direct},
		Handler:     h.faq,
	}
}

func (h *handlers) faq(ctx context.Context, req Request) (Result, error) {
	fields := SplitN(req.Text, 3)
	action, name, text := field(fields, 1), field(fields, 2), field(fields, 3)

	switch action {
	case "add":
		if name == "" || text == "" {
			return notice(badFormat), nil
		}
		return h.addFAQ(ctx, req.SenderName, name, text)
	case "delete":
		if name == "" {
			return notice(badFormat), nil
		}
		return h.deleteFAQ(ctx, name)
	case "list":
		return h.listFAQs(ctx)
	}

	query := field(SplitN(req.Text, 1), 1)
	if strings.TrimSpace(query) == "" {
		return notice(badFormat), nil
	}
	lines, err := h.FAQ.Query(ctx, query, faqResults)
	if err != nil {
		return Result{}, fmt.Errorf("searching faq: %w", err)
	}
	if len(lines) == 0 {
		return notice("I don't know that one yet."), nil
	}
	return notice("Here is what I found:\n" + strings.Join(lines, "\n")), nil
}

func (h *handlers) addFAQ(ctx context.Context, user, name, text string) (Result, error) {
	existing, err := h.Store.GetFAQ(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("checking faq %s: %w", name, err)
	}
	if existing != nil {
		return notice(fmt.Sprintf("⚠️ An FAQ named %q already exists.", name)), nil
	}
	id, err := h.Store.CreateFAQ(ctx, name, text, user, h.Now())
	if err != nil {
		return Result{}, fmt.Errorf("creating faq %s: %w", name, err)
	}
	if err := h.FAQ.Add(ctx, id, text); err != nil {
		// The row is useless without its vectors; drop it so the user can retry.
		if derr := h.Store.DeleteFAQ(ctx, id); derr != nil {
			h.Logger.Error("rolling back faq", "faq_id", id, "err", derr)
		}
		return Result{}, fmt.Errorf("indexing faq %s: %w", name, err)
	}
	return notice(fmt.Sprintf("✅ FAQ %q added.", name)), nil
}

func (h *handlers) deleteFAQ(ctx context.Context, name string) (Result, error) {
	existing, err := h.Store.GetFAQ(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("loading faq %s: %w", name, err)
	}
	if existing == nil {
		return notice(fmt.Sprintf("⚠️ No FAQ named %q was found.", name)), nil
	}
	if err := h.Store.DeleteFAQ(ctx, existing.ID); err != nil {
		return Result{}, fmt.Errorf("deleting faq %s: %w", name, err)
	}
	if err := h.FAQ.Delete(ctx, existing.ID); err != nil {
		return Result{}, fmt.Errorf("removing faq %s from index: %w", name, err)
	}
	return notice(fmt.Sprintf("🗑️ FAQ %q deleted.", name)), nil
}

func (h *handlers) listFAQs(ctx context.Context) (Result, error) {
	faqs, err := h.Store.ListFAQs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing faqs: %w", err)
	}
	if len(faqs) == 0 {
		return notice("ℹ️ The FAQ is empty."), nil
	}
	items := make([]string, 0, len(faqs))
	for _, f := range faqs {
		items = append(items, "• "+f.Name)
	}
	return notice("📚 FAQ entries:\n" + strings.Join(items, "\n")), nil
}
