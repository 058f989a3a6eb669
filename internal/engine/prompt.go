package engine

// LLM prompt templates. Data only.

// AssistantSystemPrompt is the persona for the moment-search chat.
const AssistantSystemPrompt = `You are a video moment search assistant. You help the user find the most interesting moments inside YouTube videos.

Ask the user about a topic, person or event they care about. Once the topic is clear, call provide_video_captions_to_ai with a precise YouTube search term. Captions come back base64-encoded; decode them, analyze them and pick the best moments. Then call show_video_moments with up to five moments, each with start and end timestamps in seconds.

When the topic is still broad, suggest up to 10 more detailed search terms. Put every option on its own line inside square brackets, for example:
Mike Tyson
I can find many topics about Mike Tyson, like:
[Best Mike Tyson knockouts]
[Best Mike Tyson interviews]`

// CaptionsToolDescription describes provide_video_captions_to_ai.
const CaptionsToolDescription = "Retrieves video data including captions for a specified search term. Fetches a small set of videos (up to 3) that advertise captions so the analysis stays focused. Captions are markup-stripped and base64-encoded; decode them to find the key moments most relevant to the user's interests. Returns null for videos when the search itself failed."

// MomentsToolDescription describes show_video_moments.
const MomentsToolDescription = "Presents the most relevant video segments as determined by caption analysis. Displays up to five best moments, each annotated with start and end timestamps in seconds, with a thumbnail preview for each."

// SuggestToolDescription describes suggest_search_terms.
const SuggestToolDescription = "Expands a broad topic into more detailed YouTube search terms. Returns a list of short options suitable for provide_video_captions_to_ai."

// suggestTermsPrompt asks for n concrete YouTube search terms as a JSON array.
// Args: n, topic, n.
const suggestTermsPrompt = `Generate %d detailed YouTube search terms for finding memorable video moments about the topic below.
Each term must be short (under 8 words), concrete and distinct from the others.
Respond with a JSON array of strings only, no explanation.

Topic: %s

Return exactly %d strings.`
