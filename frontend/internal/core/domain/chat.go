package domain

import "time"

// User mirrors the profile object the backend embeds in auth responses.
type User struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatroomMember struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

// Chatroom and Message ids are opaque strings (hex object ids on the server).
type Chatroom struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedBy uint             `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	Members   []ChatroomMember `json:"members"`
}

// MessageType selects the payload shape of a message. The server decides which
// combinations of text and media are required; the client only forwards them.
type MessageType string

const (
	MessageText           MessageType = "text"
	MessagePicture        MessageType = "picture"
	MessageAudio          MessageType = "audio"
	MessageVideo          MessageType = "video"
	MessageTextAndPicture MessageType = "text_and_picture"
	MessageTextAndAudio   MessageType = "text_and_audio"
	MessageTextAndVideo   MessageType = "text_and_video"
)

// HasMedia reports whether the type carries a media attachment.
func (t MessageType) HasMedia() bool {
	switch t {
	case MessagePicture, MessageAudio, MessageVideo,
		MessageTextAndPicture, MessageTextAndAudio, MessageTextAndVideo:
		return true
	}
	return false
}

type Message struct {
	ID          string      `json:"id"`
	ChatroomID  string      `json:"chatroom_id"`
	SenderID    uint        `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	MessageType MessageType `json:"message_type"`
	TextContent string      `json:"text_content"`
	MediaURL    string      `json:"media_url"`
	SentAt      time.Time   `json:"sent_at"`
}
