package session

import "github.com/mindflowhq/sanctuary-engine/internal/resources"

// ActionType tags the kind of side effect the caller should render. The
// engine never touches presentation; it only emits these values.
type ActionType string

const (
	// ActionBotMessage renders a bot chat bubble.
	ActionBotMessage ActionType = "bot_message"
	// ActionOfferGrounding offers the 5-4-3-2-1 grounding exercise.
	ActionOfferGrounding ActionType = "offer_grounding"
	// ActionShowButtons renders a quick-reply button set.
	ActionShowButtons ActionType = "show_buttons"
	// ActionRequestConsent asks the direct safety question and awaits an
	// explicit decision.
	ActionRequestConsent ActionType = "request_consent"
	// ActionShowResources delivers region crisis resources.
	ActionShowResources ActionType = "show_resources"
	// ActionNotifyHuman signals the human hand-off collaborator.
	ActionNotifyHuman ActionType = "notify_human"
	// ActionPause suspends normal response generation.
	ActionPause ActionType = "pause"
	// ActionResume lifts a previous pause.
	ActionResume ActionType = "resume"
)

// Action is one ordered side effect of a transition.
type Action struct {
	Type     ActionType        `json:"type"`
	Message  string            `json:"message,omitempty"`
	Buttons  []string          `json:"buttons,omitempty"`
	Resource *resources.Record `json:"resource,omitempty"`
	Compact  bool              `json:"compact,omitempty"`
}

// BotMessage builds a plain message action.
func BotMessage(text string) Action {
	return Action{Type: ActionBotMessage, Message: text}
}

// Buttons builds a quick-reply action.
func Buttons(labels ...string) Action {
	return Action{Type: ActionShowButtons, Buttons: labels}
}
