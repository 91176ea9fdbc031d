package scoring

// Category is a contact's business-development priority tier.
type Category string

const (
	CategoryHighValueLead Category = "High-Value Lead"
	CategoryActive        Category = "Active Contact"
	CategoryRegular       Category = "Regular Contact"
	CategoryPositive      Category = "Positive Contact"
	CategoryContact       Category = "Contact"
)

// Categories lists every category from highest to lowest priority.
var Categories = []Category{
	CategoryHighValueLead,
	CategoryActive,
	CategoryRegular,
	CategoryPositive,
	CategoryContact,
}

// ParseCategory returns the category with the given label.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// Categorize applies the category rules in priority order; the first rule
// that matches wins. Volume combined with sentiment is checked before volume
// or sentiment alone.
func (p Policy) Categorize(a ContactAggregate) Category {
	switch {
	case a.MessageCount > p.HighValueMessages && a.AverageSentiment > p.HighValueSentiment:
		return CategoryHighValueLead
	case a.MessageCount > p.ActiveMessages && a.AverageSentiment > p.ActiveSentiment:
		return CategoryActive
	case a.MessageCount > p.RegularMessages:
		return CategoryRegular
	case a.AverageSentiment > p.PositiveSentiment:
		return CategoryPositive
	default:
		return CategoryContact
	}
}

// Action is a recommended follow-up for a contact.
type Action string

const (
	ActionScheduleMeeting Action = "Schedule high-priority meeting"
	ActionSendProposal    Action = "Send detailed proposal"
	ActionCaseStudy       Action = "Follow up with case study"
	ActionCheckIn         Action = "Send general check-in message"
)

var actions = map[Category]Action{
	CategoryHighValueLead: ActionScheduleMeeting,
	CategoryActive:        ActionSendProposal,
	CategoryPositive:      ActionCaseStudy,
	CategoryRegular:       ActionCheckIn,
	CategoryContact:       ActionCheckIn,
}

// RecommendAction maps a category to its follow-up action. Unknown categories
// get the general check-in.
func RecommendAction(c Category) Action {
	if a, ok := actions[c]; ok {
		return a
	}
	return ActionCheckIn
}
