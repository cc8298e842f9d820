package model

import "time"

// Profile is a public user profile.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	BannerURL   string    `json:"banner_url,omitempty"`
	Sport       string    `json:"sport,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is one workout journal entry.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Date      time.Time  `json:"date"`    // calendar date, UTC midnight
	Feeling   int        `json:"feeling"` // 1-5
	Tags      []string   `json:"tags,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Exercises []Exercise `json:"exercises,omitempty"`
}

// Exercise is a single movement logged inside a session.
// Zero values for Sets/Reps/Weight mean "not recorded".
type Exercise struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Name      string  `json:"name"`
	Sets      int     `json:"sets,omitempty"`
	Reps      int     `json:"reps,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
}

// Palmares is a competition result.
type Palmares struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Year        string    `json:"year"`
	Competition string    `json:"competition"`
	Category    string    `json:"category,omitempty"`
	Result      string    `json:"result"`
	Federation  string    `json:"federation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PersonalRecord is a best lift.
type PersonalRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Lift      string    `json:"lift"`
	Weight    float64   `json:"weight"`
	Unit      string    `json:"unit"`
	Validated bool      `json:"validated"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow is a directed follower -> following edge.
type Follow struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikePair identifies one like on one session.
type LikePair struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// FollowCounts holds both sides of a profile's follow graph.
type FollowCounts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// Comment is a comment left on a session.
type Comment struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionPhoto is a photo attached to a session. URL is the public object URL.
type SessionPhoto struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation groups the participants of a direct message thread.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a direct message inside a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// FeedItem is a session together with its author, as shown in the community feed.
type FeedItem struct {
	Session Session `json:"session"`
	Author  Profile `json:"author"`
}
