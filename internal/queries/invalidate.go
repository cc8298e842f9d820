package queries

import (
	"log/slog"

	"github.com/roach88/fitsync/internal/cache"
)

// Invalidator is the write side of the contract: one method per tag
// family. It satisfies social.Invalidator.
type Invalidator struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over c.
func NewInvalidator(c *cache.Cache, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: c, logger: logger}
}

func (i *Invalidator) invalidate(tag string) {
	n := i.cache.Invalidate(tag)
	i.logger.Debug("invalidate", "tag", tag, "entries", n)
}

func (i *Invalidator) InvalidateProfile(username string) { i.invalidate(ProfileKey(username)) }
func (i *Invalidator) InvalidateSessions(userID string) { i.invalidate(SessionsKey(userID)) }
func (i *Invalidator) InvalidateSession(sessionID string) { i.invalidate(SessionKey(sessionID)) }
func (i *Invalidator) InvalidateFeed() { i.invalidate(FeedTag) }
func (i *Invalidator) InvalidatePalmares(userID string) { i.invalidate(PalmaresKey(userID)) }
func (i *Invalidator) InvalidatePRs(userID string) { i.invalidate(PRsKey(userID)) }
func (i *Invalidator) InvalidateFollows(profileID string) { i.invalidate(FollowsKey(profileID)) }
func (i *Invalidator) InvalidateMyProfile(userID string) { i.invalidate(MyProfileKey(userID)) }
