package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Add and list inbound messages",
}

var messageAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store and index a message",
	Long: `Stores a message and indexes its chunks for retrieval.

The body is read from --body, from --file, or from stdin when neither is set.

Examples:
  precedent message add --sender "Priya" --category investor --subject "Seed round" --body "Any update?"
  cat mail.html | precedent message add --sender ops@acme.io --category support --html`,
	Args: cobra.NoArgs,
	RunE: runMessageAdd,
}

var messageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored messages, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMessageList,
}

var messageShowCmd = &cobra.Command{
	Use:   "show [message-id]",
	Short: "Print a stored message",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessageShow,
}

var messageAdd struct {
	id         string
	sender     string
	category   string
	channel    string
	subject    string
	body       string
	file       string
	html       bool
	receivedAt string
}

var messageList struct {
	category string
	limit    int
	json     bool
}

func init() {
	f := messageAddCmd.Flags()
	f.StringVar(&messageAdd.id, "id", "", "message id (generated when empty)")
	f.StringVarP(&messageAdd.sender, "sender", "s", "", "sender name or address")
	f.StringVarP(&messageAdd.category, "category", "c", "", "sender category: investor, sales, support or other")
	f.StringVar(&messageAdd.channel, "channel", "email", "channel the message arrived on")
	f.StringVar(&messageAdd.subject, "subject", "", "message subject")
	f.StringVarP(&messageAdd.body, "body", "b", "", "message body")
	f.StringVarP(&messageAdd.file, "file", "f", "", "read the body from a file")
	f.BoolVar(&messageAdd.html, "html", false, "the body is HTML")
	f.StringVar(&messageAdd.receivedAt, "received-at", "", "RFC 3339 receive time (default now)")
	_ = messageAddCmd.MarkFlagRequired("category")

	messageListCmd.Flags().StringVarP(&messageList.category, "category", "c", "", "only this sender category")
	messageListCmd.Flags().IntVarP(&messageList.limit, "limit", "n", 20, "maximum number of messages")
	messageListCmd.Flags().BoolVar(&messageList.json, "json", false, "output as JSON")

	messageCmd.AddCommand(messageAddCmd)
	messageCmd.AddCommand(messageListCmd)
	messageCmd.AddCommand(messageShowCmd)
	rootCmd.AddCommand(messageCmd)
}

func runMessageAdd(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	msg := &domain.Message{
		ID:             messageAdd.id,
		SenderName:     messageAdd.sender,
		SenderCategory: domain.SenderCategory(strings.ToLower(messageAdd.category)),
		Channel:        domain.Channel(messageAdd.channel),
		Subject:        messageAdd.subject,
		Body:           body,
	}
	if messageAdd.html {
		msg.ContentType = domain.ContentTypeHTML
	}
	if messageAdd.receivedAt != "" {
		at, err := time.Parse(time.RFC3339, messageAdd.receivedAt)
		if err != nil {
			return fmt.Errorf("invalid --received-at: %w", err)
		}
		msg.CreatedAt = at.UTC()
	}

	stored, err := ingestionService.IngestMessage(cmd.Context(), msg)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	cmd.Printf("Added message %s (%s)\n", stored.ID, stored.SenderCategory)
	return nil
}

func readBody(cmd *cobra.Command) (string, error) {
	switch {
	case messageAdd.body != "":
		return messageAdd.body, nil
	case messageAdd.file != "":
		data, err := os.ReadFile(messageAdd.file)
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return string(data), nil
	}
}

func runMessageList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	msgs, err := ingestionService.ListMessages(cmd.Context(), domain.MessageFilter{
		SenderCategory: domain.SenderCategory(messageList.category),
		Limit:          messageList.limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	if messageList.json {
		return printJSON(cmd, msgs)
	}
	if len(msgs) == 0 {
		cmd.Println("No messages found.")
		return nil
	}
	for i := range msgs {
		printMessage(cmd, &msgs[i])
	}
	cmd.Printf("\nTotal: %d messages\n", len(msgs))
	return nil
}

func runMessageShow(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	msg, err := ingestionService.GetMessage(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	printMessage(cmd, msg)
	cmd.Println()
	cmd.Println(msg.Body)
	return nil
}
