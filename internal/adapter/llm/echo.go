package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// Echo is an offline model that answers with a digest of the last user
// message. It keeps the CLI usable without network access.
type Echo struct{}

var _ port.LLM = Echo{}

const echoMaxBytes = 400

func (Echo) Chat(ctx context.Context, messages []domain.ChatMessage, _ port.ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		content := strings.TrimSpace(messages[i].Content)
		if len(content) > echoMaxBytes {
			cut := echoMaxBytes
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
		}
		return fmt.Sprintf("[echo] %s", content), nil
	}
	return "[echo]", nil
}

func (Echo) ModelName() string {
	return "echo"
}
