package dialogue

import (
	"fmt"
	"strings"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

const (
	roleSystem    = "system"
	roleAssistant = "assistant"
	roleUser      = "user"
)

// openingCue stands in for the candidate when no answer exists yet, so the
// model produces the opening question.
const openingCue = "The candidate has joined. Greet them and ask the first question."

// SystemPrompt renders the interviewer instructions for a job.
func SystemPrompt(job interview.JobContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional interviewer conducting a live spoken interview for the role of %s.", job.Role)
	if name := strings.TrimSpace(job.CandidateName); name != "" {
		fmt.Fprintf(&b, " The candidate's name is %s.", name)
	}
	if len(job.Skills) > 0 {
		fmt.Fprintf(&b, " Assess these skills: %s.", strings.Join(job.Skills, ", "))
	}
	b.WriteString(" Ask exactly one concise question per reply, building on the candidate's previous answers." +
		" Your replies are read aloud, so use plain sentences without lists, markdown or code.")
	return b.String()
}

// BuildMessages renders the chat history for the next request: the system
// prompt, then each turn as an assistant question and a user answer.
func BuildMessages(job interview.JobContext, history []interview.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, 2*len(history)+2)
	msgs = append(msgs, chatMessage{Role: roleSystem, Content: SystemPrompt(job)})
	if len(history) == 0 {
		return append(msgs, chatMessage{Role: roleUser, Content: openingCue})
	}
	for _, t := range history {
		msgs = append(msgs,
			chatMessage{Role: roleAssistant, Content: t.Question},
			chatMessage{Role: roleUser, Content: t.Answer},
		)
	}
	return msgs
}
