package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/prompts"
)

// Friday 2025-04-04 15:00 in Moscow.
var fridayAfternoon = time.Date(2025, 4, 4, 12, 0, 0, 0, time.UTC)

type fakeIndex struct {
	docs map[int64][]string
}

func (f *fakeIndex) Add(_ context.Context, id int64, text string) error {
	if f.docs == nil {
		f.docs = map[int64][]string{}
	}
	f.docs[id] = strings.Split(text, "\n")
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id int64) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, q string, n int) ([]string, error) {
	var out []string
	for _, lines := range f.docs {
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), strings.ToLower(q)) && len(out) < n {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

type env struct {
	db  *db.DB
	reg *Registry
	idx *fakeIndex
	now time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	res, err := prompts.New(d)
	require.NoError(t, err)

	e := &env{db: d, idx: &fakeIndex{}, now: fridayAfternoon}
	e.reg = NewRegistry(Deps{
		Store:   d,
		Prompts: res,
		FAQ:     e.idx,
		Now:     func() time.Time { return e.now },
	})
	return e
}

// run invokes the command named by text's first token as sender.
func (e *env) run(t *testing.T, sender, text string, post chat.Post) string {
	t.Helper()
	cmd, ok := e.reg.Lookup(SplitN(text, 1)[0])
	require.True(t, ok, "no command for %q", text)
	if post.ChannelID == "" {
		post.ChannelID = "ch1"
	}
	res, err := cmd.Handler(context.Background(), Request{Text: text, Post: post, SenderName: sender})
	require.NoError(t, err)
	assert.False(t, res.UseFunctions)
	return res.Instructions
}

func root() chat.Post { return chat.Post{ID: "p1", ChannelID: "ch1"} }
func inThread(id string) chat.Post { return chat.Post{ID: "p2", ChannelID: "ch1", RootID: id} }

// --- registry ---

func TestRegistryOrderAndScopes(t *testing.T) {
	e := newEnv(t)

	var names []string
	for _, c := range e.reg.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"!help", "!content_guard", "!prompt", "!schedule_prompt", "!reminder", "!faq"}, names)

	_, ok := e.reg.Lookup("!HELP")
	assert.False(t, ok, "lookup is case-sensitive")

	help, _ := e.reg.Lookup("!help")
	assert.True(t, help.Allows(chat.Direct))
	assert.False(t, help.Allows(chat.Open))

	rem, _ := e.reg.Lookup("!reminder")
	assert.True(t, rem.Allows(chat.Private))
	assert.False(t, rem.Allows(chat.Direct))

	faq, _ := e.reg.Lookup("!faq")
	for _, ct := range []chat.ChannelType{chat.Direct, chat.Open, chat.Private} {
		assert.True(t, faq.Allows(ct))
	}
}

func TestRegisterReplacesInPlace(t *testing.T) {
	e := newEnv(t)
	e.reg.Register(Command{Name: "!help", Description: "custom"})
	e.reg.Register(Command{Name: "!ping", Description: "pong"})

	cmds := e.reg.Commands()
	assert.Equal(t, "custom", cmds[0].Description)
	assert.Equal(t, "!ping", cmds[len(cmds)-1].Name)
}

func TestHelpListsEveryCommand(t *testing.T) {
	e := newEnv(t)
	out := e.run(t, "alice", "!help", root())

	for _, c := range e.reg.Commands() {
		assert.Contains(t, out, "**"+c.Name+"**")
	}
	assert.Contains(t, out, "🔹 Available in direct messages\n")
	assert.Contains(t, out, "🔹 Available in channels (mention the bot)")
	assert.Contains(t, out, "🔹 Available in direct messages and channels")
}

// --- !content_guard ---

func TestContentGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	out := e.run(t, "alice", "!content_guard set town-square Reply only with a haiku.", root())
	assert.Contains(t, out, "Content guard set for **town-square**")

	g, err := e.db.GetGuard(ctx, "town-square")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "Reply only with a haiku.", g.Prompt)
	assert.Equal(t, "alice", g.CreatedBy)

	out = e.run(t, "bob", "!content_guard list", root())
	assert.Contains(t, out, "**Channel**: town-square")

	out = e.run(t, "bob", "!content_guard delete town-square", root())
	assert.Contains(t, out, "only delete content guards you added")

	out = e.run(t, "alice", "!content_guard delete town-square", root())
	assert.Contains(t, out, "deleted")
	g, err = e.db.GetGuard(ctx, "town-square")
	require.NoError(t, err)
	assert.Nil(t, g)

	assert.Equal(t, "ℹ️ No content guards are set.", e.run(t, "alice", "!content_guard list", root()))
	assert.Contains(t, e.run(t, "alice", "!content_guard delete nowhere", root()), "No content guard found")
	assert.Equal(t, badFormat, e.run(t, "alice", "!content_guard set town-square", root()))
}

// --- !prompt ---

func TestPromptSaveValidation(t *testing.T) {
	e := newEnv(t)

	assert.Contains(t, e.run(t, "alice", "!prompt save secret standup Prompt: x", root()), "must be `public` or `private`")
	assert.Contains(t, e.run(t, "alice", "!prompt save public summary Prompt: mine", root()), "already exists")

	out := e.run(t, "alice", "!prompt save PRIVATE standup Prompt: list blockers first", root())
	assert.Contains(t, out, "**standup** (private) saved")

	assert.Contains(t, e.run(t, "bob", "!prompt save public standup Prompt: again", root()), "already exists")
	assert.Equal(t, badFormat, e.run(t, "alice", "!prompt save public lonely", root()))
}

func TestPromptVisibility(t *testing.T) {
	e := newEnv(t)
	e.run(t, "alice", "!prompt save private standup Prompt: list blockers first", root())
	e.run(t, "alice", "!prompt save public retro Prompt: what went well", root())

	out := e.run(t, "bob", "!prompt list", root())
	assert.Contains(t, out, "**summary** (public)\n👤 **Author**: system")
	assert.Contains(t, out, "**retro**")
	assert.NotContains(t, out, "standup")

	assert.Contains(t, e.run(t, "alice", "!prompt list", root()), "standup")

	assert.Contains(t, e.run(t, "bob", "!prompt get standup", root()), "do not have access")
	assert.Contains(t, e.run(t, "alice", "!prompt get standup", root()), "list blockers first")
	assert.Contains(t, e.run(t, "bob", "!prompt get summary_day", root()), "**Author**: system")
	assert.Contains(t, e.run(t, "bob", "!prompt get ghost", root()), "not found")
}

func TestPromptDelete(t *testing.T) {
	e := newEnv(t)
	e.run(t, "alice", "!prompt save public retro Prompt: what went well", root())

	assert.Contains(t, e.run(t, "alice", "!prompt delete summary", root()), "cannot be deleted")
	assert.Contains(t, e.run(t, "bob", "!prompt delete retro", root()), "only delete your own")
	assert.Contains(t, e.run(t, "alice", "!prompt delete ghost", root()), "not found")
	assert.Contains(t, e.run(t, "alice", "!prompt delete retro", root()), "deleted")

	p, err := e.db.GetPrompt(context.Background(), "retro")
	require.NoError(t, err)
	assert.Nil(t, p)
}

// --- !schedule_prompt ---

func TestSchedulePrompt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.Contains(t, e.run(t, "alice", "!schedule_prompt", inThread("r1")), "Give a prompt name")
	assert.Contains(t, e.run(t, "alice", "!schedule_prompt summary", root()), "only works inside a thread")
	assert.Contains(t, e.run(t, "alice", "!schedule_prompt ghost", inThread("r1")), "No prompt named **ghost**")

	out := e.run(t, "alice", "!schedule_prompt summary", inThread("r1"))
	assert.Contains(t, out, "will be applied to this thread at the end of the day")

	from, to := time.Date(2025, 4, 3, 21, 0, 0, 0, time.UTC), time.Date(2025, 4, 4, 21, 0, 0, 0, time.UTC)
	sp, err := e.db.FindOpenScheduledPrompt(ctx, "r1", from, to)
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.Equal(t, "ch1", sp.ChannelID)
	assert.Equal(t, "p2", sp.MessageID)
	assert.Equal(t, "alice", sp.SenderName)
	assert.True(t, sp.RunDate.Equal(fridayAfternoon))
}

func TestSchedulePromptOncePerThreadPerDay(t *testing.T) {
	e := newEnv(t)
	e.run(t, "alice", "!schedule_prompt summary", inThread("r1"))

	out := e.run(t, "bob", "!schedule_prompt summary_advice", inThread("r1"))
	assert.Equal(t, "⚠️ A prompt is already scheduled for this thread today: **summary**.", out)

	// Another thread is unaffected.
	assert.Contains(t, e.run(t, "bob", "!schedule_prompt summary_advice", inThread("r2")), "will be applied")

	// So is the next operational day (00:30 Saturday in Moscow).
	e.now = time.Date(2025, 4, 4, 21, 30, 0, 0, time.UTC)
	assert.Contains(t, e.run(t, "bob", "!schedule_prompt summary_advice", inThread("r1")), "will be applied")
}

func TestSchedulePromptPrivateVisibility(t *testing.T) {
	e := newEnv(t)
	e.run(t, "alice", "!prompt save private mine Prompt: secret", root())

	assert.Contains(t, e.run(t, "bob", "!schedule_prompt mine", inThread("r1")), "No prompt named")
	assert.Contains(t, e.run(t, "alice", "!schedule_prompt mine", inThread("r1")), "will be applied")
}

// --- !reminder ---

func TestReminderAdd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	out := e.run(t, "alice", "!reminder add 09:00 repeat mon,wed true summary_day", root())
	assert.Equal(t, "🔔 Reminder **summary_day** set for 09:00 (repeats).", out)

	r, err := e.db.FindActiveReminder(ctx, "summary_day", "ch1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"mon", "wed"}, r.Days)
	assert.True(t, r.Repeat)
	assert.True(t, r.WithHistory)
	assert.Equal(t, "alice", r.CreatedBy)
	// Friday past 09:00 rolls to Monday 09:00 Moscow.
	assert.True(t, r.RunDate.Equal(time.Date(2025, 4, 7, 6, 0, 0, 0, time.UTC)), "run date %v", r.RunDate)

	assert.Contains(t, e.run(t, "alice", "!reminder add 10:00 once summary_day", root()), "already exists")
}

func TestReminderAddDefaults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.run(t, "alice", "!reminder add 16:00 once summary", root())
	r, err := e.db.FindActiveReminder(ctx, "summary", "ch1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"fri"}, r.Days)
	assert.False(t, r.Repeat)
	assert.False(t, r.WithHistory)
	assert.True(t, r.RunDate.Equal(time.Date(2025, 4, 4, 13, 0, 0, 0, time.UTC)))

	// Already past 10:00 on Friday: next business day.
	e.run(t, "alice", "!reminder add 10:00 repeat all summary_advice", root())
	r, err = e.db.FindActiveReminder(ctx, "summary_advice", "ch1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"mon", "tue", "wed", "thu", "fri"}, r.Days)

	e.run(t, "alice", "!reminder add 10:00 repeat false summary_day", root())
	r, err = e.db.FindActiveReminder(ctx, "summary_day", "ch1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"mon"}, r.Days)
}

func TestReminderAddValidation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		text string
		want string
	}{
		{"!reminder add 9:00 repeat summary", "HH:mm format"},
		{"!reminder add 25:00 repeat summary", "HH:mm format"},
		{"!reminder add 09:07 repeat summary", "multiple of 5 minutes"},
		{"!reminder add 09:00 repeat mon,funday false summary", "Invalid weekdays"},
		{"!reminder add 09:00 repeat mon ghost", "No prompt named **ghost**"},
		{"!reminder add 09:00 sometimes summary", badFormat},
		{"!reminder add 09:00 repeat", badFormat},
		{"!reminder explode", badFormat},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Contains(t, e.run(t, "alice", tt.text, root()), tt.want)
		})
	}
}

func TestReminderRejectsThreads(t *testing.T) {
	e := newEnv(t)
	out := e.run(t, "alice", "!reminder add 09:00 repeat summary", inThread("r1"))
	assert.Contains(t, out, "not from a thread")
}

func TestReminderListAndDelete(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, "ℹ️ No active reminders.", e.run(t, "alice", "!reminder list", root()))

	e.run(t, "alice", "!reminder add 09:00 repeat mon,wed false summary_day", root())
	out := e.run(t, "bob", "!reminder list", root())
	assert.Contains(t, out, "• summary_day at 09:00 (repeats) on mon, wed (next: Mon, 09:00, ")
	assert.Contains(t, out, "from now)")

	// Other channels have their own list.
	other := root()
	other.ChannelID = "ch2"
	assert.Equal(t, "ℹ️ No active reminders.", e.run(t, "alice", "!reminder list", other))

	assert.Contains(t, e.run(t, "alice", "!reminder delete ghost", root()), "not found")
	assert.Contains(t, e.run(t, "alice", "!reminder delete summary_day", root()), "deleted")
	assert.Equal(t, "ℹ️ No active reminders.", e.run(t, "alice", "!reminder list", root()))

	// The name is free again once deactivated.
	assert.Contains(t, e.run(t, "alice", "!reminder add 09:00 once summary_day", root()), "set for 09:00 (once)")
}

// --- !faq ---

func TestFAQ(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, "ℹ️ The FAQ is empty.", e.run(t, "alice", "!faq list", root()))
	assert.Equal(t, "I don't know that one yet.", e.run(t, "alice", "!faq vpn", root()))

	out := e.run(t, "alice", "!faq add VPN Ask IT for a VPN token\nInstall the VPN client", root())
	assert.Equal(t, `✅ FAQ "VPN" added.`, out)
	assert.Contains(t, e.run(t, "alice", "!faq add VPN again", root()), "already exists")

	out = e.run(t, "bob", "!faq how do I get vpn", root())
	assert.Equal(t, "I don't know that one yet.", out)

	out = e.run(t, "bob", "!faq VPN", root())
	assert.Equal(t, "Here is what I found:\nAsk IT for a VPN token\nInstall the VPN client", out)

	assert.Equal(t, "📚 FAQ entries:\n• VPN", e.run(t, "bob", "!faq list", root()))

	assert.Contains(t, e.run(t, "bob", "!faq delete nope", root()), "No FAQ named")
	assert.Contains(t, e.run(t, "bob", "!faq delete VPN", root()), "deleted")
	assert.Empty(t, e.idx.docs)
	assert.Equal(t, badFormat, e.run(t, "bob", "!faq add VPN", root()))
	assert.Equal(t, badFormat, e.run(t, "bob", "!faq", root()))
}
