// Package discord is a minimal REST client for the pieces of the Discord API
// taskdeck uses: webhook message post/edit/delete, bot channel messages,
// guild scheduled events, and interaction webhooks with message components.
package discord

// Interaction types.
const (
	InteractionPing             = 1
	InteractionApplicationCmd   = 2
	InteractionMessageComponent = 3
)

// Interaction response types.
const (
	ResponsePong    = 1
	ResponseMessage = 4
)

// Component types.
const (
	ComponentActionRow    = 1
	ComponentStringSelect = 3
)

// MessageFlagEphemeral marks a response visible only to the invoking user.
const MessageFlagEphemeral = 1 << 6

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one name/value section of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter is the embed footer line.
type EmbedFooter struct {
	Text string `json:"text"`
}

// WebhookMessage is the payload for executing or editing a webhook message.
type WebhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Component is a message component (action row or string select).
type Component struct {
	Type        int            `json:"type"`
	CustomID    string         `json:"custom_id,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	MinValues   *int           `json:"min_values,omitempty"`
	MaxValues   *int           `json:"max_values,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Components  []Component    `json:"components,omitempty"`
}

// SelectOption is one option in a string select menu.
type SelectOption struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// ActionRow wraps components in an action row.
func ActionRow(components ...Component) Component {
	return Component{Type: ComponentActionRow, Components: components}
}

// StringSelect builds a multi-select menu allowing 1..len(options) choices.
func StringSelect(customID, placeholder string, options []SelectOption) Component {
	min, max := 1, len(options)
	return Component{
		Type:        ComponentStringSelect,
		CustomID:    customID,
		Placeholder: placeholder,
		MinValues:   &min,
		MaxValues:   &max,
		Options:     options,
	}
}

// Interaction is an incoming interaction webhook payload.
type Interaction struct {
	Type   int              `json:"type"`
	Data   *InteractionData `json:"data,omitempty"`
	Member *GuildMember     `json:"member,omitempty"`
	User   *User            `json:"user,omitempty"`
}

// InteractionData carries the command name or component selection.
type InteractionData struct {
	Name     string          `json:"name,omitempty"`      // application command
	CustomID string          `json:"custom_id,omitempty"` // component
	Values   []string        `json:"values,omitempty"`    // select menu choices
	Options  []CommandOption `json:"options,omitempty"`   // command arguments
}

// CommandOption is one argument of a slash command.
type CommandOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// String returns the option value as a string.
func (o CommandOption) String() string {
	s, _ := o.Value.(string)
	return s
}

// Int returns the option value as an integer. Discord encodes integer
// options as JSON numbers, which decode to float64.
func (o CommandOption) Int() int {
	f, _ := o.Value.(float64)
	return int(f)
}

// User is the invoking Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GuildMember wraps the user when an interaction comes from a guild.
type GuildMember struct {
	User *User `json:"user,omitempty"`
}

// UserID returns the invoking user's ID regardless of guild or DM context.
func (i *Interaction) UserID() string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// Option returns the named command argument, if present.
func (d *InteractionData) Option(name string) (CommandOption, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return CommandOption{}, false
}

// InteractionResponse is the reply to an interaction webhook.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the message body of an interaction response.
type InteractionResponseData struct {
	Content    string      `json:"content,omitempty"`
	Flags      int         `json:"flags,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Pong is the fixed reply to an interaction ping.
func Pong() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

// Ephemeral builds a message response visible only to the invoking user.
func Ephemeral(content string, components ...Component) InteractionResponse {
	return InteractionResponse{
		Type: ResponseMessage,
		Data: &InteractionResponseData{
			Content:    content,
			Flags:      MessageFlagEphemeral,
			Components: components,
		},
	}
}

// ScheduledEvent is the payload for creating a guild scheduled event.
type ScheduledEvent struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ChannelID    string `json:"channel_id"`
	StartTime    string `json:"scheduled_start_time"` // RFC 3339
	EntityType   int    `json:"entity_type"`          // 2 = voice
	PrivacyLevel int    `json:"privacy_level"`        // 2 = guild only
}

const (
	EventEntityVoice      = 2
	EventPrivacyGuildOnly = 2
)
