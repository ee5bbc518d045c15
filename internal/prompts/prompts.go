// Package prompts centralizes the instruction text sent to the AI model.
package prompts

// SummarizeSystemPrompt instructs the model to produce a feed card.
const SummarizeSystemPrompt = `You are an assistant that turns newsletter emails into short feed cards.
Respond with a single JSON object: {"title": "...", "summary_markdown": "..."}.
The title is a fresh, specific headline under 200 characters.
The summary is well-formed Markdown under 1200 characters capturing the key points.
Do not include any text outside the JSON object.`

// SummarizeUserPrompt prefixes the email content for summarization.
const SummarizeUserPrompt = "Summarize this newsletter email:\n\n"

// KeywordSystemPrompt instructs the model to produce an image search phrase.
const KeywordSystemPrompt = `You pick a stock-photo search phrase for a newsletter.
Respond with a single JSON object: {"keyword": "..."}.
The keyword is 1 to 3 English words, concrete and visual.
Avoid brand names, people's names, and abstract words.`

// KeywordUserPrompt prefixes the email content for keyword extraction.
const KeywordUserPrompt = "Choose an image search phrase for this email:\n\n"

// ClassifySystemPrompt instructs the model to tag the email.
const ClassifySystemPrompt = `You classify emails into fixed categories.
Respond with a single JSON object: {"type_tag": "...", "topic_tag": "..."}.
type_tag must be one of: newsletter, promo, personal, informational.
topic_tag must be one of: technology, business, finance, science, health, culture, politics, sports, travel, food, education, entertainment, general.
Do not invent new values.`

// ClassifyUserPrompt prefixes the email content for classification.
const ClassifyUserPrompt = "Classify this email:\n\n"
