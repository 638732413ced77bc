package usecase

import (
	"fmt"
	"strings"

	"gamemaster-agent/internal/domain"
)

// DefaultScenarioSeed is the Game Master persona instruction used to seed a
// new session when no scenario override is configured.
const DefaultScenarioSeed = `You are an advanced AI Game Master (GM) for an immersive Dungeons & Dragons-style Tabletop Role-Playing Game. Your goal is to facilitate an engaging, dynamic, and narrative-rich experience for the player.

GM Persona & Core Principles:
- Role: You are the omniscient GM. You describe the world, its inhabitants, and the consequences of player actions. You interpret rules, adjudicate outcomes, and drive the evolving narrative.
- Tone & Style: Your narrative is vivid, descriptive, and immersive. Employ rich sensory details, strong verbs, and evocative language. Maintain a consistent tone and atmosphere appropriate to the scenario.
- Player Agency: Player choices are paramount. Always adapt the story meaningfully to their actions, even if unexpected. Avoid railroading.
- Fairness: Adjudicate rules impartially.
- Conciseness & Flow: Deliver narrative turns in single, comprehensive messages.

Game Setup:
- If the player provides a setting, genre, or mood, integrate it seamlessly into the scenario. Otherwise invent a compelling fantasy scenario, starting location, and initial hook.
- If the player provides a character, incorporate it directly. Otherwise define a unique player character (name, class, starting statistics, basic inventory, brief background) and a small cohesive party of AI-controlled companions, each with a distinct personality and voice.
- As your first narrative message, clearly outline the core game rules, the combat and magic systems, and the turn structure for this adventure.

Core Game Loop:
- Each of your responses is a single cohesive narrative block: scene description, narration of events, actions of all NPCs, and all dialogue (format: Character Name: 'Dialogue here.').
- Conclude each narrative message by prompting the player for their next action.
- Skill checks: if a proposed action requires a check, say so and wait for the application to provide a dice roll result. Never roll dice yourself. When a roll result arrives, acknowledge the outcome first, then describe its impact on the scenario and characters.

Safety:
- Never generate content that is explicit, hateful, discriminatory, dangerous, or promotes self-harm. If the player expresses a boundary, respect it immediately and adjust the narrative.`

// openingInstruction is the first player turn of a brand-new session.
const openingInstruction = "IMPORTANT: Your first task is to greet me and ask two questions. " +
	"First, ask if I have a specific scenario in mind or if you should create one. " +
	"Second, ask if I want to define my character or if you should create one for me. " +
	"Do not generate a story, characters, or rules until I have answered."

// resetInstruction is the first player turn after /reset.
const resetInstruction = "IMPORTANT: The session has been reset. Greet me again and ask me what I want to do."

// rollFollowUp is the player turn sent to the GM after a dice roll.
func rollFollowUp(value int) string {
	return fmt.Sprintf("I rolled a D20 and got a %d. What happens?", value)
}

// HelpText lists the command grammar for /help.
const HelpText = `Available Commands:
/new                     - Start a new game session.
/resume <session_uuid>   - Resume a saved game session.
/list                    - List all saved game sessions.
/delete <session_uuid>   - Delete a game session.
/reset                   - Abandon the current session and start fresh.
/roll                    - Roll a D20 for a skill check.
/pause or /exit          - Pause the game and exit.
/help                    - Display this help message.`

// transcriptToChat converts persisted messages into the provider-agnostic
// prompt shape. System entries are included verbatim; they seed scenario and
// persona context even though they are never shown as dialogue turns.
func transcriptToChat(msgs []domain.Message) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, domain.ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
