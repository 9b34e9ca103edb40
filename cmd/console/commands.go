package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/token"
	"github.com/pkg/errors"
)

const passwordEnvVar = "CONSOLE_PASSWORD"

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "login -u USERNAME [-p PASSWORD]   (password defaults to $" + passwordEnvVar + ")", cmdLogin},
	{"logout", "logout", cmdLogout},
	{"whoami", "whoami", cmdWhoami},
	{"status", "status", cmdStatus},
	{"call", "call METHOD PATH [JSON]", cmdCall},
	{"upload", "upload [-X METHOD] PATH field=@file [key=value ...]", cmdUpload},
	{"serve", "serve", cmdServe},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: console <command> [arguments]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *password == "" {
		*password = os.Getenv(passwordEnvVar)
	}
	if *username == "" {
		return errUsage
	}

	user, err := a.store.Login(ctx, token.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", user.DisplayName())
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	a.store.Logout()
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if a.restore(ctx) != auth.Authenticated {
		return auth.ErrNotAuthenticated
	}
	user := a.store.User()
	fmt.Fprintf(a.out, "%s (%s)\n", user.DisplayName(), user.Username)
	if user.Profile != nil && user.Profile.Role != nil {
		fmt.Fprintf(a.out, "role: %s\n", user.Profile.Role.Name)
	}
	caps := make([]string, 0)
	for _, c := range user.Capabilities() {
		caps = append(caps, string(c))
	}
	fmt.Fprintf(a.out, "capabilities: %s\n", strings.Join(caps, ", "))
	return nil
}

func cmdStatus(ctx context.Context, a *app, _ []string) error {
	a.restore(ctx)
	st := a.store.Status()
	fmt.Fprintf(a.out, "state: %s\n", st.State)
	if st.Username != "" {
		fmt.Fprintf(a.out, "user: %s\n", st.Username)
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "access token expires: %s (in %s)\n", st.ExpiresAt.Format(time.RFC3339), st.ExpiresIn.Round(time.Second))
	}
	fmt.Fprintf(a.out, "backend: %s\n", a.api.BaseURL())
	return nil
}

func cmdCall(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	if a.restore(ctx) != auth.Authenticated {
		return auth.ErrNotAuthenticated
	}

	target, err := url.Parse(args[1])
	if err != nil || target.Fragment != "" {
		return errors.Errorf("invalid path %q", args[1])
	}
	call := &apiclient.Call{Method: args[0], Path: target.Path}
	if q := target.Query(); len(q) > 0 {
		call.Query = q
	}
	if len(args) == 3 {
		if !json.Valid([]byte(args[2])) {
			return errors.New("body is not valid JSON")
		}
		call.Body = json.RawMessage(args[2])
	}
	resp, err := a.api.Do(ctx, call)
	return printResponse(a.out, resp, err)
}

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	method := fs.String("X", http.MethodPost, "HTTP method")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 2 {
		return errUsage
	}
	form, err := parseForm(fs.Args()[1:])
	if err != nil {
		return err
	}
	if a.restore(ctx) != auth.Authenticated {
		return auth.ErrNotAuthenticated
	}

	resp, err := a.api.Upload(ctx, *method, fs.Arg(0), form)
	return printResponse(a.out, resp, err)
}

// parseForm turns field=@path into file parts and key=value into fields.
func parseForm(pairs []string) (*apiclient.Multipart, error) {
	form := apiclient.NewMultipart()
	files := 0
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid form argument %q, expected key=value or field=@file", pair)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			form.FilePath(key, path)
			files++
			continue
		}
		form.Field(key, value)
	}
	if files == 0 {
		return nil, errors.New("upload needs at least one field=@file argument")
	}
	return form, nil
}

func printResponse(w io.Writer, resp *apiclient.Response, err error) error {
	if resp != nil {
		fmt.Fprintf(w, "HTTP %d\n", resp.StatusCode)
		var pretty bytes.Buffer
		if json.Indent(&pretty, resp.Body, "", "  ") == nil {
			fmt.Fprintln(w, pretty.String())
		} else if len(resp.Body) > 0 {
			fmt.Fprintln(w, string(resp.Body))
		}
	}
	if errors.Is(err, apiclient.ErrAuthExpired) {
		return errors.New("session expired, run `console login` again")
	}
	return err
}
