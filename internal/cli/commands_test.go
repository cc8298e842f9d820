package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitsync/internal/app"
	"github.com/roach88/fitsync/internal/config"
	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/media"
	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/store"
	"github.com/roach88/fitsync/internal/testutil"
)

var cliNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type stubPresigner struct{}

func (stubPresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *params.Key, Method: http.MethodPut}, nil
}

type cliEnv struct {
	configPath string
	dbPath     string
}

// setupCLI writes a config file and seeds a database with two users and
// three sessions. Session IDs are id-1 (alice, 2024-03-08), id-4 (bob,
// 2024-03-09) and id-6 (alice, 2024-03-10).
func setupCLI(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "fitsync.yaml"),
		dbPath:     filepath.Join(dir, "fitsync.db"),
	}

	cfg := config.Default()
	cfg.Database.Path = env.dbPath
	cfg.Database.PollInterval = 20 * time.Millisecond
	require.NoError(t, config.Save(env.configPath, cfg))

	seed(t, env, "id", func(ctx context.Context, st *store.Store) {
		for _, name := range []string{"alice", "bob"} {
			_, err := st.PutProfile(ctx, model.Profile{ID: name, Username: name})
			require.NoError(t, err)
		}
		sessions := []model.Session{
			{UserID: "alice", Title: "Squat day", Tags: []string{"legs"}, Exercises: []model.Exercise{
				{Name: "Back squat", Sets: 5, Reps: 5, Weight: 120},
				{Name: "Lunge", Sets: 3, Reps: 10},
			}},
			{UserID: "bob", Title: "Bench", Exercises: []model.Exercise{{Name: "Bench press", Sets: 5, Reps: 3, Weight: 100}}},
			{UserID: "alice", Title: "Rest walk"},
		}
		for i, s := range sessions {
			d, err := derive.ParseDate([]string{"2024-03-08", "2024-03-09", "2024-03-10"}[i])
			require.NoError(t, err)
			s.Date = d
			_, err = st.PutSession(ctx, s)
			require.NoError(t, err)
		}
	})
	return env
}

// seed opens the database outside the CLI, runs fn and closes it again.
// Generated IDs are "<prefix>-N".
func seed(t *testing.T, env cliEnv, prefix string, fn func(ctx context.Context, st *store.Store)) {
	t.Helper()
	st, err := store.Open(env.dbPath,
		store.WithIDGenerator(store.NewSequenceGenerator(prefix)),
		store.WithNow(testutil.NewManualClock(cliNow).Ticker(time.Second)),
	)
	require.NoError(t, err)
	fn(context.Background(), st)
	require.NoError(t, st.Close())
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), env, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, env cliEnv, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := executeCLI(ctx, env, out, &bytes.Buffer{}, args...)
	return out.String(), err
}

// executeCLI runs one fitsync invocation. Every call opens its own App,
// and so its own database connection, like a separate process would.
func executeCLI(ctx context.Context, env cliEnv, stdout, stderr io.Writer, args ...string) error {
	opts := &RootOptions{
		Now: func() time.Time { return cliNow },
		AppOptions: []app.Option{
			app.WithPresigner(stubPresigner{},
				media.WithIDFunc(func() string { return "0001" }),
				media.WithNow(func() time.Time { return cliNow }),
			),
		},
	}
	cmd := newRootCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	return cmd.ExecuteContext(ctx)
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMigrateCommand(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "database ready: "+env.dbPath+"\n", out)
}

func TestMigrateCommand_BadConfig(t *testing.T) {
	env := cliEnv{configPath: filepath.Join(t.TempDir(), "missing.yaml")}

	out, err := runCLI(t, env, "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")
}

func TestStreakCommand(t *testing.T) {
	env := setupCLI(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"streak", "alice"}, "@alice: 1 day streak\n"},
		{[]string{"streak", "alice", "--today", "2024-03-11"}, "@alice: 1 day streak\n"},
		{[]string{"streak", "alice", "--today", "2024-03-12"}, "@alice: 0 day streak\n"},
		{[]string{"streak", "bob", "--today", "2024-03-09"}, "@bob: 1 day streak\n"},
	}
	for _, tt := range tests {
		out, err := runCLI(t, env, tt.args...)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, out, tt.args)
	}
}

func TestStreakCommand_JSON(t *testing.T) {
	env := setupCLI(t)
	seed(t, env, "extra", func(ctx context.Context, st *store.Store) {
		d, _ := derive.ParseDate("2024-03-09")
		_, err := st.PutSession(ctx, model.Session{UserID: "alice", Title: "Pull day", Date: d})
		require.NoError(t, err)
	})

	out, err := runCLI(t, env, "--format", "json", "streak", "alice")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   StreakResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, StreakResult{Username: "alice", Today: "2024-03-10", Streak: 3}, resp.Data)
}

func TestStreakCommand_Errors(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "streak", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	_, err = runCLI(t, env, "streak", "alice", "--today", "10/03/2024")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFeedCommand_Text(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "feed")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "feed_text", []byte(out))
}

func TestFeedCommand_JSONAndPaging(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "--format", "json", "feed")
	require.NoError(t, err)
	var resp struct {
		Data []model.FeedItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "Rest walk", resp.Data[0].Session.Title)
	assert.Equal(t, "alice", resp.Data[0].Author.Username)
	assert.Len(t, resp.Data[2].Session.Exercises, 2)

	out, err = runCLI(t, env, "feed", "--page", "2")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", out)

	_, err = runCLI(t, env, "feed", "--page", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFollowCommand_Toggles(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "follow", "bob", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice now follows @bob (1 follower)\n", out)

	out, err = runCLI(t, env, "follow", "bob", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice unfollowed @bob (0 followers)\n", out)

	out, err = runCLI(t, env, "inbox", "--as", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "unread: 1 notifications, 0 messages")
	assert.Contains(t, out, "follow   from alice")
}

func TestFollowCommand_Errors(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "follow", "alice", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")

	out, err = runCLI(t, env, "follow", "bob", "--as", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	_, err = runCLI(t, env, "follow", "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "as" not set`)
}

func TestLikeCommand_NotifiesOwnerOnce(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "like", "id-4", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "liked session id-4 (1 like)\n", out)

	out, err = runCLI(t, env, "like", "id-4", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "unliked session id-4 (0 likes)\n", out)

	out, err = runCLI(t, env, "--format", "json", "inbox", "--as", "bob", "--mark-read")
	require.NoError(t, err)
	var resp struct {
		Data InboxResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.UnreadNotifications)
	require.Len(t, resp.Data.Notifications, 1)
	assert.Equal(t, model.NotificationLike, resp.Data.Notifications[0].Type)
	assert.Equal(t, "id-4", resp.Data.Notifications[0].SessionID)

	out, err = runCLI(t, env, "inbox", "--as", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "unread: 0 notifications, 0 messages")
}

func TestLikeCommand_UnknownSession(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "like", "nope", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestWatchCommand_ReportsCountersUntilCancelled(t *testing.T) {
	env := setupCLI(t)
	seed(t, env, "extra", func(ctx context.Context, st *store.Store) {
		_, err := st.InsertNotification(ctx, model.Notification{UserID: "bob", ActorID: "alice", Type: model.NotificationFollow})
		require.NoError(t, err)
		conv, err := st.CreateConversation(ctx, []string{"alice", "bob"})
		require.NoError(t, err)
		_, err = st.SendMessage(ctx, conv.ID, "alice", "hi")
		require.NoError(t, err)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out, err := runCLIContext(t, ctx, env, "watch", "--as", "bob")
	require.NoError(t, err)
	assert.Equal(t,
		"watching @bob: 1 unread notifications, 1 unread messages\n"+
			"stopped @bob: 1 unread notifications, 1 unread messages\n",
		out)
}

func TestWatchCommand_ToastsActionsFromAnotherProcess(t *testing.T) {
	env := setupCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeCLI(ctx, env, out, io.Discard, "watch", "--as", "bob")
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching @bob")
	}, 5*time.Second, 10*time.Millisecond)

	followOut, err := runCLI(t, env, "follow", "bob", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice now follows @bob (1 follower)\n", followOut)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "> alice started following you")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "stopped @bob: 1 unread notifications, 0 unread messages")
}

func TestUploadURLCommand(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "upload-url", "photo", "squat.jpg", "--as", "alice", "--session", "id-1", "--size", "1000")
	require.NoError(t, err)
	assert.Equal(t, "PUT https://signed.example/photo/alice/0001-squat.jpg\n"+
		"key: photo/alice/0001-squat.jpg\n"+
		"public: https://fitsync-media.s3.us-east-1.amazonaws.com/photo/alice/0001-squat.jpg\n"+
		"expires: 2024-03-10 09:05:00\n", out)

	out, err = runCLI(t, env, "upload-url", "photo", "squat.jpg", "--as", "bob", "--session", "id-1", "--size", "1000")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	out, err = runCLI(t, env, "upload-url", "avatar", "me.png", "--as", "alice", "--size", "3000000", "--content-type", "image/png")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")

	_, err = runCLI(t, env, "upload-url", "photo", "squat.jpg", "--as", "alice", "--size", "1000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--session is required")

	_, err = runCLI(t, env, "upload-url", "video", "clip.mp4", "--as", "alice", "--size", "1000")
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrUnknownKind)
}

func TestUploadConfirmCommand(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "upload-confirm", "avatar", "avatar/alice/0001-me.png", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "avatar updated: https://fitsync-media.s3.us-east-1.amazonaws.com/avatar/alice/0001-me.png\n", out)

	out, err = runCLI(t, env, "upload-confirm", "photo", "photo/alice/0001-squat.jpg", "--as", "alice", "--session", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "photo attached: https://fitsync-media.s3.us-east-1.amazonaws.com/photo/alice/0001-squat.jpg\n", out)
}

func TestConfigCommands(t *testing.T) {
	env := setupCLI(t)
	path := filepath.Join(t.TempDir(), "conf", "new.yaml")

	out, err := runCLI(t, env, "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)
	_, err = os.Stat(path)
	require.NoError(t, err)

	t.Setenv("FITSYNC_MEDIA_SECRET_ACCESS_KEY", "hunter2")
	t.Setenv("FITSYNC_LOG_LEVEL", "debug")
	out, err = runCLI(t, env, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "path: "+env.dbPath)
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "secret_access_key: REDACTED")
	assert.NotContains(t, out, "hunter2")
}

func TestVerboseReportsConfigAndDatabase(t *testing.T) {
	env := setupCLI(t)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	require.NoError(t, executeCLI(context.Background(), env, stdout, stderr, "--verbose", "migrate"))
	assert.Equal(t, "database ready: "+env.dbPath+"\n", stdout.String())
	assert.Contains(t, stderr.String(), "config: "+env.configPath+"\n")
	assert.Contains(t, stderr.String(), "database: "+env.dbPath+"\n")

	stderr.Reset()
	require.NoError(t, executeCLI(context.Background(), env, io.Discard, stderr, "migrate"))
	assert.NotContains(t, stderr.String(), "database: ")
}

func TestFeedCommand_HugePage(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "feed", "--page", "9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", out)
}

func TestProfileCommands(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "profile", "put", "carol", "--as", "carol", "--display-name", "Carol Lift", "--sport", "weightlifting")
	require.NoError(t, err)
	assert.Equal(t, "saved @carol (carol)\n", out)

	_, err = runCLI(t, env, "profile", "put", "carol", "--as", "carol", "--bio", "snatch first")
	require.NoError(t, err)

	out, err = runCLI(t, env, "palmares", "add", "--as", "carol", "--year", "2023", "--competition", "Nationals",
		"--category", "U23", "--result", "1st", "--federation", "FFHM")
	require.NoError(t, err)
	assert.Equal(t, "added 2023 Nationals U23: 1st (FFHM)\n", out)

	out, err = runCLI(t, env, "pr", "add", "--as", "carol", "--lift", "Snatch", "--weight", "85.5", "--validated")
	require.NoError(t, err)
	assert.Equal(t, "added Snatch 85.5 kg (validated)\n", out)

	_, err = runCLI(t, env, "follow", "carol", "--as", "alice")
	require.NoError(t, err)

	out, err = runCLI(t, env, "profile", "show", "carol")
	require.NoError(t, err)
	assert.Equal(t, "@carol (Carol Lift) weightlifting\n"+
		"snatch first\n"+
		"1 follower, 0 following, 0 day streak\n"+
		"  2023 Nationals U23: 1st (FFHM)\n"+
		"  Snatch 85.5 kg (validated)\n", out)

	out, err = runCLI(t, env, "profile", "put", "caro", "--as", "carol")
	require.NoError(t, err)
	assert.Equal(t, "saved @caro (carol)\n", out)

	out, err = runCLI(t, env, "profile", "show", "carol")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E003]")

	out, err = runCLI(t, env, "--format", "json", "profile", "show", "caro")
	require.NoError(t, err)
	var resp struct {
		Data ProfileView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Carol Lift", resp.Data.Profile.DisplayName)
	assert.Equal(t, "snatch first", resp.Data.Profile.Bio)
	assert.Len(t, resp.Data.Records, 1)
}

func TestRecordCommands_Errors(t *testing.T) {
	env := setupCLI(t)

	_, err := runCLI(t, env, "pr", "add", "--as", "alice", "--lift", "Squat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "weight" not set`)

	_, err = runCLI(t, env, "pr", "add", "--as", "alice", "--lift", "Squat", "--weight", "-5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, env, "palmares", "add", "--as", "alice", "--competition", " ", "--result", "2nd")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSearchCommand(t *testing.T) {
	env := setupCLI(t)
	seed(t, env, "extra", func(ctx context.Context, st *store.Store) {
		_, err := st.PutProfile(ctx, model.Profile{ID: "alicia", Username: "alicia", DisplayName: "Alicia Brown"})
		require.NoError(t, err)
		_, err = st.PutProfile(ctx, model.Profile{ID: "dan", Username: "dan", DisplayName: "Dan the Alien"})
		require.NoError(t, err)
	})

	out, err := runCLI(t, env, "search", "ALI")
	require.NoError(t, err)
	assert.Equal(t, "@alice\n@alicia  Alicia Brown\n@dan  Dan the Alien\n", out)

	out, err = runCLI(t, env, "search", "ali", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "@alice\n", out)

	out, err = runCLI(t, env, "search", "%")
	require.NoError(t, err)
	assert.Equal(t, "no profiles\n", out)

	out, err = runCLI(t, env, "--format", "json", "search", "brown")
	require.NoError(t, err)
	var resp struct {
		Data []model.Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "alicia", resp.Data[0].ID)

	_, err = runCLI(t, env, "search", "ali", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSessionCommands(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "--format", "json", "session", "add", "--as", "alice", "--title", "Pull day",
		"--date", "2024-03-09", "--feeling", "4", "--tag", "back",
		"-e", "Deadlift:5x3@180", "-e", "Plank")
	require.NoError(t, err)
	var added struct {
		Data model.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	s := added.Data
	assert.Equal(t, "alice", s.UserID)
	assert.Equal(t, "2024-03-09", s.Date.Format(time.DateOnly))
	assert.Equal(t, 4, s.Feeling)
	assert.Equal(t, []string{"back"}, s.Tags)
	require.Len(t, s.Exercises, 2)
	assert.Equal(t, "Deadlift", s.Exercises[0].Name)
	assert.Equal(t, 5, s.Exercises[0].Sets)
	assert.Equal(t, 3, s.Exercises[0].Reps)
	assert.InDelta(t, 180.0, s.Exercises[0].Weight, 0.001)
	assert.Equal(t, "Plank", s.Exercises[1].Name)

	out, err = runCLI(t, env, "streak", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice: 3 day streak\n", out)

	out, err = runCLI(t, env, "session", "edit", s.ID, "--as", "alice", "--title", "Heavy pull")
	require.NoError(t, err)
	assert.Equal(t, "updated "+s.ID+": 2024-03-09  Heavy pull (2 exercises) #back\n", out)

	out, err = runCLI(t, env, "session", "edit", s.ID, "--as", "bob", "--title", "Mine now")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	out, err = runCLI(t, env, "session", "rm", s.ID, "--as", "bob")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E004]")

	out, err = runCLI(t, env, "session", "rm", s.ID, "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "deleted "+s.ID+"\n", out)

	out, err = runCLI(t, env, "session", "show", s.ID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	out, err = runCLI(t, env, "streak", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice: 1 day streak\n", out)
}

func TestSessionAddCommand_DefaultsToToday(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "--format", "json", "session", "add", "--as", "bob", "--title", "Bench again")
	require.NoError(t, err)
	var added struct {
		Data model.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.Equal(t, "2024-03-10", added.Data.Date.Format(time.DateOnly))

	out, err = runCLI(t, env, "streak", "bob")
	require.NoError(t, err)
	assert.Equal(t, "@bob: 2 day streak\n", out)
}

func TestSessionAddCommand_Errors(t *testing.T) {
	env := setupCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing title", []string{"--as", "alice"}, `required flag(s) "title" not set`},
		{"feeling out of range", []string{"--as", "alice", "--title", "x", "--feeling", "9"}, "--feeling"},
		{"bad date", []string{"--as", "alice", "--title", "x", "--date", "tomorrow"}, "invalid --date"},
		{"bad exercise", []string{"--as", "alice", "--title", "x", "-e", "Squat:5by5"}, "invalid --exercise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, env, append([]string{"session", "add"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommentCommand(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "comment", "id-1", "deep squats", "--as", "bob")
	require.NoError(t, err)
	assert.Equal(t, "commented on id-1\n", out)

	out, err = runCLI(t, env, "inbox", "--as", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "unread: 1 notifications, 0 messages")
	assert.Contains(t, out, "comment  from bob on id-1")

	_, err = runCLI(t, env, "like", "id-1", "--as", "bob")
	require.NoError(t, err)

	out, err = runCLI(t, env, "session", "show", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08  Squat day (2 exercises) #legs by alice\n"+
		"  Back squat 5x5 @ 120\n"+
		"  Lunge 3x10\n"+
		"1 like, 1 comment, 0 photos\n"+
		"  bob: deep squats\n", out)

	out, err = runCLI(t, env, "comment", "nope", "hello", "--as", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	_, err = runCLI(t, env, "comment", "id-1", "  ", "--as", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMessageCommands(t *testing.T) {
	env := setupCLI(t)

	send := func(to, text, as string) SendResult {
		t.Helper()
		out, err := runCLI(t, env, "--format", "json", "message", "send", to, text, "--as", as)
		require.NoError(t, err)
		var resp struct {
			Data SendResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data
	}

	first := send("bob", "leg day?", "alice")
	assert.Equal(t, []string{"alice", "bob"}, first.Conversation.Participants)
	second := send("bob", "6am", "alice")
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID, "the direct conversation is reused")
	reply := send("alice", "sure", "bob")
	assert.Equal(t, first.Conversation.ID, reply.Conversation.ID)
	convID := first.Conversation.ID

	out, err := runCLI(t, env, "messages", "--as", "bob")
	require.NoError(t, err)
	assert.Equal(t, convID+"  with alice\n", out)

	out, err = runCLI(t, env, "inbox", "--as", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "unread: 0 notifications, 2 messages")

	out, err = runCLI(t, env, "messages", convID, "--as", "bob", "--mark-read")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "  alice: leg day?"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "  alice: 6am"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "  bob: sure"), lines[2])
	assert.Equal(t, "marked 2 messages read", lines[3])

	out, err = runCLI(t, env, "inbox", "--as", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "unread: 0 notifications, 0 messages")

	out, err = runCLI(t, env, "messages", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, convID+"  with bob\n", out)
}

func TestMessageCommands_Errors(t *testing.T) {
	env := setupCLI(t)
	seed(t, env, "extra", func(ctx context.Context, st *store.Store) {
		_, err := st.PutProfile(ctx, model.Profile{ID: "carol", Username: "carol"})
		require.NoError(t, err)
	})

	out, err := runCLI(t, env, "message", "send", "ghost", "hi", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	_, err = runCLI(t, env, "message", "send", "alice", "hi", "--as", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot message yourself")

	out, err = runCLI(t, env, "--format", "json", "message", "send", "bob", "hi", "--as", "alice")
	require.NoError(t, err)
	var resp struct {
		Data SendResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	out, err = runCLI(t, env, "messages", resp.Data.Conversation.ID, "--as", "carol")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	out, err = runCLI(t, env, "messages", "--as", "carol")
	require.NoError(t, err)
	assert.Equal(t, "no conversations\n", out)

	_, err = runCLI(t, env, "messages", "--as", "carol", "--mark-read")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
