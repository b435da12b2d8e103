package session

import "regexp"

// intentRoute pairs a pattern set with a response template. Routes are
// evaluated in priority order; the first match wins.
type intentRoute struct {
	name           string
	pattern        *regexp.Regexp
	reply          string
	buttons        []string
	offerGrounding bool
}

var intentRoutes = []intentRoute{
	{
		name:    "greeting",
		pattern: regexp.MustCompile(`(?i)^\s*(hi|hey|hello|hiya|good (morning|afternoon|evening))\b`),
		reply:   "Hi there, good to meet you. Whenever you're ready, you can tell me what's on your mind.",
		buttons: []string{"Feeling stressed", "Feeling low", "Just checking in"},
	},
	{
		name:           "anxiety",
		pattern:        regexp.MustCompile(`(?i)anxi|panic|overwhelm|stress|stressed`),
		reply:          "That sounds stressful. Would a brief grounding or breathing exercise be helpful?",
		buttons:        []string{"Try grounding", "Show breathing", "Just listen"},
		offerGrounding: true,
	},
	{
		name:    "sleep",
		pattern: regexp.MustCompile(`(?i)sleep|insomnia|tired`),
		reply:   "Sleep struggles can be hard. Sometimes a gentle wind-down routine helps. Want a quick tip?",
		buttons: []string{"Give a tip", "Not now"},
	},
	{
		name:    "loneliness",
		pattern: regexp.MustCompile(`(?i)lonely|alone|isolat`),
		reply:   "Feeling lonely is tough. Would exploring supportive community options help?",
		buttons: []string{"Suggest resources", "Skip"},
	},
	{
		name:    "motivation",
		pattern: regexp.MustCompile(`(?i)no motivation|unmotivated|can'?t focus`),
		reply:   "Motivation dips happen. Want a tiny action planning prompt?",
		buttons: []string{"Yes plan", "Skip"},
	},
	{
		name:    "burnout",
		pattern: regexp.MustCompile(`(?i)burn ?out|burned out|burnt out|exhausted`),
		reply:   "Burnout feelings can build slowly. Would a tiny recovery micro-step help?",
		buttons: []string{"Suggest micro-step", "Skip"},
	},
	{
		name:           "grief",
		pattern:        regexp.MustCompile(`(?i)grief|loss|lost someone|passed away`),
		reply:          "I hear grief in what you shared. There is no right timetable. Would grounding or a remembrance prompt help?",
		buttons:        []string{"Grounding", "Remembrance prompt", "Just listen"},
		offerGrounding: true,
	},
	{
		name:    "relationship",
		pattern: regexp.MustCompile(`(?i)relationship|breakup|partner|argument`),
		reply:   "Relationship stress can be heavy. Want a brief communication tip or coping strategy?",
		buttons: []string{"Communication tip", "Coping strategy", "Skip"},
	},
	{
		name:           "anger",
		pattern:        regexp.MustCompile(`(?i)anger|furious|rage`),
		reply:          "Anger can signal unmet needs. Would paced breathing or a reframing prompt help?",
		buttons:        []string{"Paced breathing", "Reframing prompt", "Skip"},
		offerGrounding: true,
	},
	{
		name:    "gratitude",
		pattern: regexp.MustCompile(`(?i)thank|thanks|appreciate`),
		reply:   "I appreciate you too. Anything else you'd like to explore, or should we begin wrapping up?",
	},
}

const generalReply = "Thanks for sharing. Can you tell me how long you've felt like this?"

// GenericPrompt is the response of last resort, used when there is nothing
// to classify. Silence toward the user is never an option.
func GenericPrompt() Action {
	return BotMessage("I'm here with you. What's on your mind?")
}

// respond routes a non-crisis utterance to its supportive response.
// Returns the matched intent name and the ordered actions.
func respond(text string) (string, []Action) {
	for _, route := range intentRoutes {
		if route.pattern.MatchString(text) {
			actions := []Action{BotMessage(route.reply)}
			if len(route.buttons) > 0 {
				actions = append(actions, Buttons(route.buttons...))
			}
			return route.name, actions
		}
	}
	return "general", []Action{BotMessage(generalReply)}
}

// wantsGrounding reports whether the matched route suggests a grounding offer.
func wantsGrounding(intent string) bool {
	for _, route := range intentRoutes {
		if route.name == intent {
			return route.offerGrounding
		}
	}
	return false
}
