package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/app"
	"github.com/roach88/fitsync/internal/media"
)

// UploadOptions holds flags for the upload-url command.
type UploadOptions struct {
	ViewerOptions
	Session     string
	Size        int64
	ContentType string
}

// NewUploadURLCommand creates the upload-url command.
func NewUploadURLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "upload-url <avatar|banner|photo> <file-name>",
		Short: "Issue a presigned upload URL",
		Long: `Issue a presigned PUT URL for an avatar (max 2MB), a banner (max 5MB) or
a session photo (max 5MB, 5 per session). Upload the file with the
returned method and headers, then run upload-confirm with the key.

Example:
  fitsync upload-url avatar me.png --as alice --size 123456 --content-type image/png
  fitsync upload-url photo squat.jpg --as alice --session <id> --size 800000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadURL(opts, args[0], args[1], cmd)
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (photos only)")
	cmd.Flags().Int64Var(&opts.Size, "size", 0, "file size in bytes (required)")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "image/jpeg", "MIME type of the file")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func runUploadURL(opts *UploadOptions, kindName, fileName string, cmd *cobra.Command) error {
	kind, err := media.ParseKind(kindName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid kind", err)
	}
	if kind == media.KindPhoto && opts.Session == "" {
		return NewExitError(ExitCommandError, "--session is required for photos")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	file := app.File{Name: fileName, ContentType: opts.ContentType, Size: opts.Size}

	var up media.Upload
	if kind == media.KindPhoto {
		up, err = a.PresignSessionPhoto(ctx, opts.Session, opts.As, file)
	} else {
		up, err = a.PresignProfileImage(ctx, opts.As, kind, file)
	}
	if err != nil {
		return f.Fail("failed to presign upload", err)
	}

	return f.Result(up, fmt.Sprintf("%s %s\nkey: %s\npublic: %s\nexpires: %s",
		up.Method, up.URL, up.Key, up.PublicURL, up.ExpiresAt.UTC().Format("2006-01-02 15:04:05")))
}

// NewUploadConfirmCommand creates the upload-confirm command.
func NewUploadConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "upload-confirm <avatar|banner|photo> <key>",
		Short: "Record an uploaded file",
		Long: `Point the viewer's avatar or banner at an uploaded object, or attach an
uploaded photo to a session.

Example:
  fitsync upload-confirm avatar avatar/alice/0190...-me.png --as alice
  fitsync upload-confirm photo photo/alice/0190...-squat.jpg --as alice --session <id>`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadConfirm(opts, args[0], args[1], cmd)
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (photos only)")

	return cmd
}

func runUploadConfirm(opts *UploadOptions, kindName, key string, cmd *cobra.Command) error {
	kind, err := media.ParseKind(kindName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid kind", err)
	}
	if kind == media.KindPhoto && opts.Session == "" {
		return NewExitError(ExitCommandError, "--session is required for photos")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	if kind == media.KindPhoto {
		photo, err := a.AttachSessionPhoto(ctx, opts.Session, opts.As, key)
		if err != nil {
			return f.Fail("failed to attach photo", err)
		}
		return f.Result(photo, "photo attached: "+photo.URL)
	}

	profile, err := a.SetProfileImage(ctx, opts.As, kind, key)
	if err != nil {
		return f.Fail("failed to update profile", err)
	}
	url := profile.AvatarURL
	if kind == media.KindBanner {
		url = profile.BannerURL
	}
	return f.Result(profile, fmt.Sprintf("%s updated: %s", kind, url))
}
