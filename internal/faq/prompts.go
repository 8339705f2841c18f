package faq

import (
	"fmt"
	"strings"
)

func contextExpansionPrompt(initiatedMessage, messages string) string {
	return strings.Join([]string{
		"The following messages are an excerpt from a Discord conversation. The final goal is to use relevant messages to generate a conversation topic and summary to be used to answer similar questions in the future. Your current task is to source context to form a complete concept. If you believe there may be adjacent messages missing from the excerpt that are necessary to understand the context, add to the context by calling the `needMoreContext` function. Otherwise, do not call any functions, and it will be assumed that all context is now accounted for. Context is likely not missing in a particular direction if messages in that direction are unrelated. Consider context missing if:",
		"- The conversation references something not explained in the current messages",
		"- The conversation starts or ends mid-thought",
		"",
		"There may be occasional unrelated messages in the excerpt, but if the majority of messages are related to the topic in a particular temporal direction, it is likely that more context is needed. Context may be needed in both directions, in such a case, only worry about one direction. You will have another chance to get context in the other direction later.",
		"Only perform a maximum of one function call.",
		"",
		`Finally, if you see "<EOF />", it means there are no more messages in that direction.`,
		"",
		"Initiated Message:",
		initiatedMessage,
		"",
		"Context Excerpt Messages:",
		messages,
	}, "\n")
}

func contextExpansionLoopPrompt(direction, initiatedMessage, messages string) string {
	return strings.Join([]string{
		fmt.Sprintf("The following messages are the resulting extended excerpt after your call to `needMoreContext(%q)`. Please once again evaluate if there may be adjacent messages missing from the excerpt that are necessary to understand the context. If you believe more context is needed, call the `needMoreContext` function again. Otherwise, do not call any functions, and it will be assumed that all context is now accounted for.", direction),
		"Only perform a maximum of one function call.",
		"",
		"Initiated Message:",
		initiatedMessage,
		"",
		"Context Excerpt Messages:",
		messages,
	}, "\n")
}

func contextRefinementPrompt(initiatedMessage, messages string) string {
	return strings.Join([]string{
		"The following messages are an excerpt from a Discord conversation. The final goal is to use relevant messages to generate a conversation topic and summary to be used to answer similar questions in the future. Your current task is to refine the context to focus on the main topic. If you believe there are irrelevant or off-topic messages in the excerpt that do not contribute to the main topic, remove them by calling the `removeMessages` function, with the id's of the messages in question. Only remove messages that are clearly irrelevant to the main topic. Do not remove a message if it includes any information that could be beneficial to someone searching for the topic. If all messages are relevant, do not call any functions, and such will be inferred. Consider messages irrelevant if they are off-topic or do not contribute to the main discussion topic.",
		"Do NOT remove the initiated message, as it is always relevant.",
		"Only perform a maximum of one function call.",
		"",
		"Initiated Message:",
		initiatedMessage,
		"",
		"Context Excerpt Messages:",
		messages,
	}, "\n")
}

func summarizationPrompt(initiatedMessage, messages string) string {
	return strings.Join([]string{
		"The following messages are an excerpt from a Discord conversation. Your task is to generate a concise summary of the main topic discussed in the conversation, in the form of one or more factual statements. The summary should be brief, capturing the essence of the discussion in a few sentences. Focus on the key points and avoid referencing specific messages or who sent them. Only output the summary without any additional commentary. The summary text will be used in its entirety as the summary.",
		`The message identified as the "initiated message" is particularly important, as it should be used to indicate the topic for the entire conversation. Ensure that the summary accurately reflects the topic introduced by this message.`,
		"",
		"Initiated Message:",
		initiatedMessage,
		"",
		"Context Excerpt Messages:",
		messages,
	}, "\n")
}

func integrationPrompt(newTopicSummary, existingTopics string) string {
	return strings.Join([]string{
		"The following is your summary of the newly identified topic from a Discord conversation, followed by a list of existing topics with their respective summaries, selected by embedding similarity. Your task is to determine if the new topic overlaps with any existing topics. If there is significant overlap, you may choose to update an existing topic by incorporating messages from the new topic and generating a new summary, or overwrite an existing topic if it is outdated or conflicts with the new topic. This can be done through the respective tool calls. If there is no significant overlap, do not call any functions, and it will be assumed that the new topic is distinct.",
		"Only perform a maximum of one function call.",
		"",
		"New Topic Summary:",
		newTopicSummary,
		"",
		"Existing Topics:",
		existingTopics,
	}, "\n")
}

func planExchangePrompt(question, askerID, timestamp, topicsXML string) string {
	return strings.Join([]string{
		"System: You are ExchangePlanner, a planning agent that designs a threaded Discord reply composed by function calls.",
		"Goal: Help the asker answer their question using only the retrieved Discord messages. If nothing helps, emit no calls.",
		"",
		"Available functions (call one per line, in display order):",
		"- userQuote(messageId: string, isNearAnswer?: boolean) → cite a retrieved message (isNearAnswer defaults to false).",
		"- separator() → visually divide unrelated clusters. Never first or last.",
		"- context(content: string) → short guiding sentence that introduces the next quote cluster. Plain text only.",
		"",
		"Inputs for this request:",
		"- Asker ID: " + askerID,
		"- Question timestamp (ISO 8601 UTC): " + timestamp,
		"- User question:\n" + question,
		"- Retrieved topics & messages (XML with stable message IDs):",
		"```xml",
		topicsXML,
		"```",
		"",
		"Ground rules:",
		"1. Faithfulness: Only include information drawn from the retrieved messages. If nothing answers any part of the question, emit nothing.",
		"2. Answer-first sequencing: Identify the minimal set of quotes (typically 2–4, max 8) that directly resolve the question. Group each cluster under a context that states which part of the question it solves.",
		"3. Near-answer protocol: When a useful lead exists but it still does not answer the question, call userQuote with isNearAnswer: true. Near-answers must trail every confirmed answer cluster and be grouped under a context that explicitly explains the missing info and why the following quotes might still help.",
		"4. Context usage: A context always precedes the cluster it describes, stays concise (one sentence or question), and never repeats the entire original question verbatim unless needed for clarity.",
		"5. Separators: Use separators sparingly between clearly distinct clusters. Do not surround single quotes with separators.",
		"6. Message hygiene: Skip duplicate quotes. Prefer shorter, on-topic messages. Every messageId must exist in the supplied data.",
		"",
		"Planning steps:",
		"A. Silently decide the question facets and the 1–3 best direct-answer messages per facet (include prompting messages when needed).",
		"B. Assemble the sequence in the order it should appear: context → userQuote+ (→ separator → context → userQuote+)*.",
		"C. If no direct answers exist but near-answers do, produce a single context explaining the gap followed by the near-answer quotes marked isNearAnswer: true.",
		"D. If absolutely nothing helps, emit no calls.",
		"",
		"Output format: one function call per line, exactly as it should be executed.",
		"Begin planning now.",
	}, "\n")
}

func exchangeLoopStartPrompt() string {
	return strings.Join([]string{
		"You are now ExchangeBuilder.",
		"Execute the planned function calls in order to build the Discord response.",
		"Remember: context → userQuote+ (→ separator → context → userQuote+)*.",
		"- Ensure the first near-answer quote (isNearAnswer: true) is immediately preceded by a context that tells the reader no direct answer exists and why the next quotes might still help.",
		"- If the plan omitted that context, add one before sending the near-answer quote.",
		"Only tool calls affect the output; any plain text you type is ignored.",
		"Begin executing calls.",
	}, "\n")
}

func exchangeLoopPrompt(added string) string {
	return strings.Join([]string{
		"So far, you have executed:",
		added,
		"",
		"Continue if more planned calls remain. Otherwise, emit nothing.",
	}, "\n")
}
