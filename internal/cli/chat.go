package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rfprag/internal/domain"
)

var chatMessages []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send a conversation straight to the model",
	Long: `Forward a message history to the model without retrieval. Each message
is given as role:content, where role is system, user or assistant.

Examples:
  rfprag chat -m "user:Summarise what an RFP is in one sentence"
  rfprag chat -m "system:Answer tersely" -m "user:What is a bid bond?"`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringArrayVarP(&chatMessages, "message", "m", nil, "message as role:content (repeatable)")
	chatCmd.MarkFlagRequired("message")
}

func runChat(cmd *cobra.Command, args []string) error {
	messages, err := parseMessages(chatMessages)
	if err != nil {
		return err
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.generate.Chat(cmd.Context(), messages)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	fmt.Println(reply)
	return nil
}

func parseMessages(raw []string) ([]domain.ChatMessage, error) {
	messages := make([]domain.ChatMessage, 0, len(raw))
	for _, r := range raw {
		role, content, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("%w: message %q is not role:content", domain.ErrInvalidInput, r)
		}
		messages = append(messages, domain.ChatMessage{
			Role:    strings.ToLower(strings.TrimSpace(role)),
			Content: strings.TrimSpace(content),
		})
	}
	return messages, nil
}
