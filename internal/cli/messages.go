package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/store"
)

// NewMessageCommand creates the message command group.
func NewMessageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send direct messages",
	}
	cmd.AddCommand(newMessageSendCommand(rootOpts))
	return cmd
}

// SendResult is the JSON payload of message send.
type SendResult struct {
	Conversation model.Conversation `json:"conversation"`
	Message      model.Message      `json:"message"`
}

func newMessageSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <username> <text>",
		Short: "Send a direct message to a user",
		Long: `Send a direct message. The two-person conversation with the recipient is
reused, or started on the first message. The recipient is notified.

Example:
  fitsync message send bob "leg day tomorrow?" --as alice`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageSend(opts, args[0], args[1], cmd)
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func runMessageSend(opts *ViewerOptions, username, text string, cmd *cobra.Command) error {
	if strings.TrimSpace(text) == "" {
		return NewExitError(ExitCommandError, "message text must not be empty")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	target, err := a.Reader.Profile(ctx, username)
	if err != nil {
		return f.Fail("failed to load profile", err)
	}
	if target.ID == opts.As {
		return NewExitError(ExitCommandError, "cannot message yourself")
	}

	convs, err := a.Reader.Conversations(ctx, opts.As)
	if err != nil {
		return f.Fail("failed to load conversations", err)
	}
	conv, ok := directConversation(convs, opts.As, target.ID)
	if !ok {
		conv, err = a.Writer.StartConversation(ctx, []string{opts.As, target.ID})
		if err != nil {
			return f.Fail("failed to start conversation", err)
		}
	}

	msg, err := a.Writer.SendMessage(ctx, conv.ID, opts.As, text)
	if err != nil {
		return f.Fail("failed to send message", err)
	}
	return f.Result(SendResult{Conversation: conv, Message: msg},
		fmt.Sprintf("sent to @%s in %s", target.Username, conv.ID))
}

// directConversation finds the conversation between exactly a and b.
func directConversation(convs []model.Conversation, a, b string) (model.Conversation, bool) {
	for _, c := range convs {
		if len(c.Participants) == 2 && slices.Contains(c.Participants, a) && slices.Contains(c.Participants, b) {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// MessagesOptions holds flags for the messages command.
type MessagesOptions struct {
	ViewerOptions
	MarkRead bool
}

// ThreadResult is the JSON payload of messages with a conversation ID.
type ThreadResult struct {
	ConversationID string          `json:"conversation_id"`
	Messages       []model.Message `json:"messages"`
	MarkedRead     int             `json:"marked_read"`
}

// NewMessagesCommand creates the messages command.
func NewMessagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MessagesOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "messages [conversation-id]",
		Short: "List conversations or read one",
		Long: `Without an argument, list the viewer's conversations, newest first.
With a conversation ID, print its messages oldest first. --mark-read
marks the viewer's message notifications read.

Example:
  fitsync messages --as bob
  fitsync messages <conversation-id> --as bob --mark-read`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runConversations(opts, cmd)
			}
			return runThread(opts, args[0], cmd)
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().BoolVar(&opts.MarkRead, "mark-read", false, "mark message notifications read")

	return cmd
}

func runConversations(opts *MessagesOptions, cmd *cobra.Command) error {
	if opts.MarkRead {
		return NewExitError(ExitCommandError, "--mark-read needs a conversation ID")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	convs, err := a.Reader.Conversations(commandContext(cmd), opts.As)
	if err != nil {
		return f.Fail("failed to load conversations", err)
	}
	if len(convs) == 0 {
		return f.Result(convs, "no conversations")
	}

	lines := make([]string, len(convs))
	for i, c := range convs {
		others := slices.DeleteFunc(slices.Clone(c.Participants), func(id string) bool { return id == opts.As })
		lines[i] = fmt.Sprintf("%s  with %s", c.ID, strings.Join(others, ", "))
	}
	return f.Result(convs, strings.Join(lines, "\n"))
}

func runThread(opts *MessagesOptions, conversationID string, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	convs, err := a.Reader.Conversations(ctx, opts.As)
	if err != nil {
		return f.Fail("failed to load conversations", err)
	}
	if !slices.ContainsFunc(convs, func(c model.Conversation) bool { return c.ID == conversationID }) {
		return f.Fail("failed to load messages", store.ErrNotParticipant)
	}

	msgs, err := a.Reader.Messages(ctx, conversationID)
	if err != nil {
		return f.Fail("failed to load messages", err)
	}
	result := ThreadResult{ConversationID: conversationID, Messages: msgs}

	if opts.MarkRead {
		marked, err := a.Store.MarkRead(ctx, opts.As, model.CounterMessages)
		if err != nil {
			return f.Fail("failed to mark messages read", err)
		}
		result.MarkedRead = len(marked)
	}
	return f.Result(result, formatThread(result))
}

func formatThread(r ThreadResult) string {
	var b strings.Builder
	if len(r.Messages) == 0 {
		b.WriteString("no messages")
	}
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s: %s", m.CreatedAt.UTC().Format(time.DateTime), m.SenderID, m.Content)
	}
	if r.MarkedRead > 0 {
		fmt.Fprintf(&b, "\nmarked %d %s read", r.MarkedRead, plural(r.MarkedRead, "message", "messages"))
	}
	return b.String()
}
