// Package queries is the cached read model and its invalidation contract.
//
// Every cached resource has one key and one or more tags. Readers fill
// under the key; writers invalidate by tag only. The mapping below is the
// contract between the two and must not drift:
//
//	profile by username     profile-<username>      tag profile-<username>
//	session list by owner   sessions-<userId>       tag sessions-<userId>
//	single session          session-<sessionId>     tag session-<sessionId>
//	feed page n             feed-page-<n>           tag feed
//	palmares                palmares-<userId>       tag palmares-<userId>
//	personal records        prs-<userId>            tag prs-<userId>
//	follow counts           follows-<profileId>     tag follows-<profileId>
//	own profile             my-profile-<userId>     tag my-profile-<userId>
//
// Usernames are NFC-normalized so a composed and a decomposed spelling
// address the same entry.
package queries

import (
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// FeedTag is shared by every cached feed page.
const FeedTag = "feed"

// NormalizeUsername returns the NFC form of a username.
func NormalizeUsername(username string) string {
	return norm.NFC.String(username)
}

// Keys. Each resource is tagged with its own key, except feed pages,
// which share FeedTag.

func ProfileKey(username string) string { return "profile-" + NormalizeUsername(username) }
func SessionsKey(userID string) string { return "sessions-" + userID }
func SessionKey(sessionID string) string { return "session-" + sessionID }
func FeedPageKey(page int) string { return "feed-page-" + strconv.Itoa(page) }
func PalmaresKey(userID string) string { return "palmares-" + userID }
func PRsKey(userID string) string { return "prs-" + userID }
func FollowsKey(profileID string) string { return "follows-" + profileID }
func MyProfileKey(userID string) string { return "my-profile-" + userID }
