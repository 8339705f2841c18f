package bot

import (
	"fmt"
	"strings"

	"github.com/lorebot/lorebot/internal/faq"
	"github.com/lorebot/lorebot/internal/topics"
)

// maxMessageLength is Discord's content limit.
const maxMessageLength = 2000

// renderExchange flattens the recall block sequence into message markdown,
// preserving the order the model composed. Quotes carry a jump link back to
// the original message; near-answers are labelled as leads rather than
// answers.
func renderExchange(blocks []faq.Block) string {
	parts := make([]string, 0, len(blocks))

	for _, block := range blocks {
		switch block := block.(type) {
		case faq.ContextBlock:
			parts = append(parts, "> "+block.Text)
		case faq.SeparatorBlock:
			parts = append(parts, "── ⋅ ──")
		case faq.QuoteBlock:
			parts = append(parts, renderQuote(block))
		}
	}

	return clampMessage(strings.Join(parts, "\n\n"))
}

func renderQuote(quote faq.QuoteBlock) string {
	message := quote.Message

	var sb strings.Builder
	if quote.NearAnswer {
		sb.WriteString("-# Maybe helpful, but not an answer:\n")
	}
	fmt.Fprintf(&sb, "-# <@%s>  <t:%d:f>  [Jump](<%s>)\n",
		message.AuthorID, message.Timestamp.Unix(), jumpLink(message))
	sb.WriteString(message.Content)
	return sb.String()
}

func jumpLink(message topics.Message) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s",
		message.GuildID, message.ChannelID, message.MessageID)
}

func clampMessage(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageLength {
		return content
	}
	const ellipsis = "…"
	return string(runes[:maxMessageLength-len([]rune(ellipsis))]) + ellipsis
}

// noAnswerFallback is shown when recall finds nothing quotable.
func noAnswerFallback(question string) string {
	return strings.Join([]string{
		"> " + question,
		"",
		"**No relevant topics were found. Try asking in chat!**",
		"",
		"-# The information required to answer this question has not yet been recorded. " +
			"To record a discussion topic, open the context menu on a related message using " +
			"right-click/long-press. Then select:\n-# `Apps > Remember Topic`",
	}, "\n")
}
