package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultFrontendURL is used when no frontend URL is configured.
const DefaultFrontendURL = "http://localhost:3000"

// JoinURL builds the link that takes a user back into the room.
func JoinURL(frontendURL, roomID string) string {
	base := strings.TrimRight(frontendURL, "/")
	if base == "" {
		base = DefaultFrontendURL
	}
	return base + "/dashboard/livesession/" + url.PathEscape(roomID)
}

// Compose renders the subject and plain-text body of a notice.
func Compose(n Notice, frontendURL string) (subject, body string) {
	label := n.RoomLabel
	if label == "" {
		label = n.RoomID
	}
	subject = "New message in chatroom for issue: " + label
	body = fmt.Sprintf("%s sent a message in the chatroom for issue \"%s\":\n%s\n\nJoin the chatroom: %s",
		n.Sender, label, n.Text, JoinURL(frontendURL, n.RoomID))
	return subject, body
}
