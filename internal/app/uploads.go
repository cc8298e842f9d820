package app

import (
	"context"
	"fmt"

	"github.com/roach88/fitsync/internal/media"
	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/queries"
)

// File describes a client-side file about to be uploaded.
type File struct {
	Name        string
	ContentType string
	Size        int64
}

// PresignProfileImage returns an upload URL for the user's avatar or banner.
func (a *App) PresignProfileImage(ctx context.Context, userID string, kind media.Kind, f File) (media.Upload, error) {
	if kind != media.KindAvatar && kind != media.KindBanner {
		return media.Upload{}, fmt.Errorf("%w: %q is not a profile image", media.ErrUnknownKind, kind)
	}
	if _, err := a.Store.GetProfileByID(ctx, userID); err != nil {
		return media.Upload{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return a.presign(ctx, media.UploadRequest{Kind: kind, OwnerID: userID, FileName: f.Name, ContentType: f.ContentType, Size: f.Size})
}

// SetProfileImage points the user's avatar or banner at an uploaded key.
func (a *App) SetProfileImage(ctx context.Context, userID string, kind media.Kind, key string) (model.Profile, error) {
	svc, err := a.Media(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	p, err := a.Store.GetProfileByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	switch kind {
	case media.KindAvatar:
		p.AvatarURL = svc.PublicURL(key)
	case media.KindBanner:
		p.BannerURL = svc.PublicURL(key)
	default:
		return model.Profile{}, fmt.Errorf("%w: %q is not a profile image", media.ErrUnknownKind, kind)
	}
	return a.Writer.UpdateProfile(ctx, p)
}

// PresignSessionPhoto returns an upload URL for a new photo on a session
// the user owns, if the session still has room.
func (a *App) PresignSessionPhoto(ctx context.Context, sessionID, userID string, f File) (media.Upload, error) {
	if err := a.checkPhotoRoom(ctx, sessionID, userID); err != nil {
		return media.Upload{}, err
	}
	return a.presign(ctx, media.UploadRequest{Kind: media.KindPhoto, OwnerID: userID, FileName: f.Name, ContentType: f.ContentType, Size: f.Size})
}

// AttachSessionPhoto records an uploaded photo on the session.
func (a *App) AttachSessionPhoto(ctx context.Context, sessionID, userID, key string) (model.SessionPhoto, error) {
	if err := a.checkPhotoRoom(ctx, sessionID, userID); err != nil {
		return model.SessionPhoto{}, err
	}
	svc, err := a.Media(ctx)
	if err != nil {
		return model.SessionPhoto{}, err
	}
	return a.Writer.AddSessionPhoto(ctx, model.SessionPhoto{
		SessionID: sessionID,
		UserID:    userID,
		URL:       svc.PublicURL(key),
	})
}

func (a *App) checkPhotoRoom(ctx context.Context, sessionID, userID string) error {
	sess, err := a.Store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.UserID != userID {
		return fmt.Errorf("photo on %s: %w", sessionID, queries.ErrForbidden)
	}

	svc, err := a.Media(ctx)
	if err != nil {
		return err
	}
	photos, err := a.Store.ListSessionPhotos(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = svc.CheckPhotoQuota(len(photos))
	return err
}

func (a *App) presign(ctx context.Context, req media.UploadRequest) (media.Upload, error) {
	svc, err := a.Media(ctx)
	if err != nil {
		return media.Upload{}, err
	}
	return svc.PresignUpload(ctx, req)
}
