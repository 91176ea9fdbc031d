package leads

import (
	"fmt"

	"github.com/xaenox/leadbot/internal/scoring"
)

// BlurbType classifies an outreach message by how warm the lead is.
type BlurbType string

const (
	BlurbHighValue   BlurbType = "high_value"
	BlurbMediumValue BlurbType = "medium_value"
	BlurbNurture     BlurbType = "lead_nurture"
	BlurbGeneral     BlurbType = "general"
)

// Blurb is a suggested opening message for a lead.
type Blurb struct {
	Type    BlurbType `json:"type"`
	Message string    `json:"message"`
}

// Outreach drafts a personalized opener. Score bands are checked before the
// category so a warm lead outside High-Value still gets a warm message.
func Outreach(l Lead) Blurb {
	name := l.Contact.FirstName
	if name == "" {
		name = l.Name
	}

	switch {
	case l.Score > 0.8:
		return Blurb{
			Type:    BlurbHighValue,
			Message: fmt.Sprintf("Hi %s! Our recent conversations have been really productive. I'd love to explore collaboration opportunities. Are you free for a quick call this week?", name),
		}
	case l.Score > 0.6:
		return Blurb{
			Type:    BlurbMediumValue,
			Message: fmt.Sprintf("Hey %s! I enjoyed our recent chat and wanted to follow up on the topics we discussed. Would you be interested in continuing the conversation?", name),
		}
	case l.Category == scoring.CategoryHighValueLead:
		return Blurb{
			Type:    BlurbNurture,
			Message: fmt.Sprintf("Hi %s! Thanks for the engaging conversation. I think there's real potential to work together. Would you be open to a brief discussion?", name),
		}
	default:
		return Blurb{
			Type:    BlurbGeneral,
			Message: fmt.Sprintf("Hi %s! Just checking in to see how things are going. I'd love to stay connected.", name),
		}
	}
}
