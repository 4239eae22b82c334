package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ginchat/ginchat/frontend/internal/apiclient"
	"github.com/ginchat/ginchat/frontend/internal/bootstrap"
	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/core/services"
	"github.com/ginchat/ginchat/frontend/internal/infrastructure/crypto"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// leadingArg splits off a positional argument given before the flags.
func leadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// parseRoomID accepts any non-empty id; room ids are opaque to the client.
func parseRoomID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w: a room id is required", errUsage)
	}
	return id, nil
}

func (a *app) readPassword(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(a.stderr, "password: ")
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("a password is required")
	}
	return pw, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ==============================================================================
// 1. Session Commands
// ==============================================================================

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errUsage
	}
	pw, err := a.readPassword(*password)
	if err != nil {
		return err
	}

	sess, err := a.client.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	return a.persist(ctx, sess)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := a.flags("register")
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		return errUsage
	}
	pw, err := a.readPassword(*password)
	if err != nil {
		return err
	}

	sess, err := a.client.Register(ctx, *username, *email, pw)
	if err != nil {
		return err
	}
	return a.persist(ctx, sess)
}

func (a *app) persist(ctx context.Context, sess *domain.Session) error {
	if err := a.sessions.Set(ctx, *sess); err != nil {
		return err
	}
	name := "unknown user"
	if u, err := sess.Profile(); err == nil && u.Username != "" {
		name = u.Username
	}
	fmt.Fprintf(a.stdout, "logged in as %s (profile %s)\n", name, a.cfg.SessionProfile)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	sess, err := a.sessions.Get(ctx)
	if err != nil {
		return err
	}
	if sess.Authenticated() {
		if err := a.client.Logout(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
		}
	}
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	sess, err := a.sessions.Get(ctx)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		fmt.Fprintln(a.stdout, "not logged in")
		return nil
	}

	out := struct {
		Profile string          `json:"profile"`
		User    json.RawMessage `json:"user,omitempty"`
		Expires *time.Time      `json:"expires_at,omitempty"`
	}{Profile: a.cfg.SessionProfile, User: sess.User}

	if claims, err := services.InspectToken(sess.Token); err == nil {
		if exp := claims.Expiry(); !exp.IsZero() {
			out.Expires = &exp
		}
	}
	return a.printJSON(out)
}

// ==============================================================================
// 2. Chat Commands
// ==============================================================================

func cmdRooms(ctx context.Context, a *app, _ []string) error {
	rooms, err := a.client.ListChatrooms(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tCREATED")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, len(r.Members), r.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func cmdCreateRoom(ctx context.Context, a *app, args []string) error {
	name, rest := leadingArg(args)
	fs := a.flags("create-room")
	nameFlag := fs.String("name", "", "room name")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if name == "" {
		name = *nameFlag
	}
	if name == "" {
		return errUsage
	}

	room, err := a.client.CreateChatroom(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "created room %s %q\n", room.ID, room.Name)
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	raw, _ := leadingArg(args)
	id, err := parseRoomID(raw)
	if err != nil {
		return err
	}
	if err := a.client.JoinChatroom(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "joined room %s\n", id)
	return nil
}

func cmdMessages(ctx context.Context, a *app, args []string) error {
	raw, rest := leadingArg(args)
	fs := a.flags("messages")
	limit := fs.Int("limit", 0, "only the newest N messages")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	id, err := parseRoomID(raw)
	if err != nil {
		return err
	}

	msgs, err := a.client.ListMessages(ctx, id, apiclient.WithLimit(*limit))
	if err != nil {
		return err
	}
	for _, m := range msgs {
		body := m.TextContent
		if m.MediaURL != "" {
			body = strings.TrimSpace(body + " [" + string(m.MessageType) + "] " + m.MediaURL)
		}
		fmt.Fprintf(a.stdout, "%s  %s: %s\n", m.SentAt.Local().Format(time.DateTime), m.SenderName, body)
	}
	return nil
}

func cmdSend(ctx context.Context, a *app, args []string) error {
	raw, rest := leadingArg(args)
	fs := a.flags("send")
	text := fs.String("text", "", "message text")
	file := fs.String("file", "", "upload a local file as the attachment")
	mediaURL := fs.String("media-url", "", "attach an already hosted file")
	typ := fs.String("type", "", "message type (inferred when omitted)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	id, err := parseRoomID(raw)
	if err != nil {
		return err
	}
	if *file != "" && *mediaURL != "" {
		return fmt.Errorf("%w: --file and --media-url are exclusive", errUsage)
	}

	// Only flags that were given reach the server, so --text "" is sent as
	// an empty string while an omitted --text is left out.
	in := apiclient.SendMessageInput{MessageType: domain.MessageType(*typ)}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "text":
			in.TextContent = apiclient.String(*text)
		case "media-url":
			in.MediaURL = apiclient.String(*mediaURL)
		}
	})

	var contentType string
	if *file != "" {
		url, ct, err := a.upload(ctx, *file)
		if err != nil {
			return err
		}
		in.MediaURL, contentType = apiclient.String(url), ct
	} else if *mediaURL != "" {
		contentType = mime.TypeByExtension(path.Ext(*mediaURL))
	}

	if in.MessageType == "" {
		in.MessageType, err = inferMessageType(*text, deref(in.MediaURL), contentType)
		if err != nil {
			return err
		}
	}

	msg, err := a.client.SendMessage(ctx, id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "sent message %s to room %s\n", msg.ID, id)
	return nil
}

func (a *app) upload(ctx context.Context, name string) (url, contentType string, err error) {
	uploader, err := bootstrap.Uploader(ctx, a.cfg)
	if err != nil {
		return "", "", err
	}
	if uploader == nil {
		return "", "", errors.New("no media bucket configured (MEDIA_S3_BUCKET); use --media-url instead")
	}

	f, err := os.Open(name)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	contentType = mime.TypeByExtension(filepath.Ext(name))
	url, err = uploader.Upload(ctx, filepath.Base(name), contentType, f)
	if err != nil {
		return "", "", err
	}
	a.logger.Debug().Str("url", url).Msg("attachment uploaded")
	return url, contentType, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// inferMessageType picks the type from the attachment's media class.
func inferMessageType(text, mediaURL, contentType string) (domain.MessageType, error) {
	if mediaURL == "" {
		if text == "" {
			return "", fmt.Errorf("%w: nothing to send", errUsage)
		}
		return domain.MessageText, nil
	}

	major, _, _ := strings.Cut(contentType, "/")
	withText := text != ""
	switch major {
	case "image":
		if withText {
			return domain.MessageTextAndPicture, nil
		}
		return domain.MessagePicture, nil
	case "audio":
		if withText {
			return domain.MessageTextAndAudio, nil
		}
		return domain.MessageAudio, nil
	case "video":
		if withText {
			return domain.MessageTextAndVideo, nil
		}
		return domain.MessageVideo, nil
	}
	return "", fmt.Errorf("%w: cannot infer the type of %q, pass --type", errUsage, mediaURL)
}

// ==============================================================================
// 3. Backend Health
// ==============================================================================

func cmdHealth(ctx context.Context, a *app, _ []string) error {
	probe, closer, err := bootstrap.Probe(a.cfg)
	if err != nil {
		return err
	}
	defer closer()

	state := bootstrap.Monitor(a.cfg, probe, nil, nil, a.logger).Check(ctx)
	if err := a.printJSON(state); err != nil {
		return err
	}
	if state.Status != domain.HealthHealthy {
		return errors.New(state.Message)
	}
	return nil
}

func cmdWatch(ctx context.Context, a *app, _ []string) error {
	probe, closer, err := bootstrap.Probe(a.cfg)
	if err != nil {
		return err
	}
	defer closer()

	mon := bootstrap.Monitor(a.cfg, probe, a.hub, nil, a.logger)
	states, cancel := mon.Subscribe()
	defer cancel()

	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	var last domain.HealthState
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-states:
			if !ok {
				return nil
			}
			if s.Status == last.Status && s.Message == last.Message {
				continue
			}
			last = s
			line := fmt.Sprintf("%s  %s", s.LastChecked.Local().Format(time.TimeOnly), s.Status)
			if s.Message != "" {
				line += ": " + s.Message
			}
			fmt.Fprintln(a.stdout, line)
		}
	}
}

// ==============================================================================
// 4. Setup
// ==============================================================================

func cmdKeygen(_ context.Context, a *app, _ []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "SESSION_KEY=%s\n", key)
	return nil
}
