// Package faq implements the two model-driven agent sequences: recording
// channel discussions into searchable topics, and recalling recorded topics
// to answer questions with cited quotes.
package faq

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lorebot/lorebot/internal/topics"
)

// timestampLayout matches the ISO 8601 form the prompts were tuned on.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type xmlMessage struct {
	XMLName   xml.Name `xml:"Message"`
	ID        string   `xml:"msgId"`
	Timestamp string   `xml:"msgTimestamp"`
	AuthorID  string   `xml:"msgAuthorId"`
	ChannelID string   `xml:"msgChannelId"`
	Content   string   `xml:"msgContent"`
}

type xmlTopicMessages struct {
	Messages []xmlMessage `xml:"Message"`
}

type xmlTopic struct {
	XMLName  xml.Name          `xml:"Topic"`
	ID       string            `xml:"topicId"`
	Summary  string            `xml:"topicSummary"`
	Messages *xmlTopicMessages `xml:"topicMessages,omitempty"`
}

func toXMLMessage(message topics.Message) xmlMessage {
	return xmlMessage{
		ID:        message.MessageID,
		Timestamp: message.Timestamp.UTC().Format(timestampLayout),
		AuthorID:  message.AuthorID,
		ChannelID: message.ChannelID,
		Content:   message.Content,
	}
}

func renderXML(v any) string {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		// Only reachable with unmarshalable field types, which these
		// fixed-shape structs cannot carry.
		return ""
	}
	return string(out)
}

// serializeMessage renders one message the way the prompts expect it.
func serializeMessage(message topics.Message) string {
	return renderXML(toXMLMessage(message))
}

// eofMarker renders the end-of-history sentinel for a temporal direction.
func eofMarker(direction string) string {
	return fmt.Sprintf("<EOF side=%q/>", direction)
}

// serializeTopic renders a topic without its messages.
func serializeTopic(topic topics.Topic) string {
	return renderXML(xmlTopic{ID: topic.ID, Summary: topic.Summary})
}

// serializeTopicWithMessages renders a topic with its messages in timestamp
// order.
func serializeTopicWithMessages(topic topics.TopicWithMessages) string {
	sorted := make([]topics.Message, len(topic.Messages))
	copy(sorted, topic.Messages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	serialized := make([]xmlMessage, len(sorted))
	for i, message := range sorted {
		serialized[i] = toXMLMessage(message)
	}

	return renderXML(xmlTopic{
		ID:       topic.ID,
		Summary:  topic.Summary,
		Messages: &xmlTopicMessages{Messages: serialized},
	})
}

func joinSerialized(parts []string) string {
	return strings.Join(parts, "\n\n")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
