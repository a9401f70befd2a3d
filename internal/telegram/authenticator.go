package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// TerminalAuth answers the login prompts on a terminal. PhoneNumber and Secret
// are used without prompting when set.
type TerminalAuth struct {
	PhoneNumber string
	Secret      string

	in  *bufio.Reader
	out io.Writer
}

var _ auth.UserAuthenticator = (*TerminalAuth)(nil)

// NewTerminalAuth reads answers from in and writes prompts to out.
func NewTerminalAuth(phone, password string, in io.Reader, out io.Writer) *TerminalAuth {
	return &TerminalAuth{
		PhoneNumber: phone,
		Secret:      password,
		in:          bufio.NewReader(in),
		out:         out,
	}
}

// Phone implements auth.UserAuthenticator.
func (a *TerminalAuth) Phone(ctx context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}
	return a.prompt(ctx, "Phone number (international format): ")
}

// Password implements auth.UserAuthenticator.
func (a *TerminalAuth) Password(ctx context.Context) (string, error) {
	if a.Secret != "" {
		return a.Secret, nil
	}
	return a.prompt(ctx, "Two-step verification password: ")
}

// Code implements auth.CodeAuthenticator.
func (a *TerminalAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt(ctx, "Login code: ")
}

// AcceptTermsOfService implements auth.UserAuthenticator.
func (a *TerminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	fmt.Fprintf(a.out, "Terms of service:\n%s\n", tos.Text)
	return nil
}

// SignUp implements auth.UserAuthenticator.
func (a *TerminalAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	first, err := a.prompt(ctx, "First name: ")
	if err != nil {
		return auth.UserInfo{}, err
	}
	last, err := a.prompt(ctx, "Last name: ")
	if err != nil {
		return auth.UserInfo{}, err
	}
	return auth.UserInfo{FirstName: first, LastName: last}, nil
}

type lineResult struct {
	line string
	err  error
}

func (a *TerminalAuth) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(a.out, label)

	res := make(chan lineResult, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		res <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-res:
		line := strings.TrimSpace(r.line)
		if r.err != nil && !(errors.Is(r.err, io.EOF) && line != "") {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), r.err)
		}
		if line == "" {
			return "", fmt.Errorf("empty answer for %q", strings.TrimSuffix(label, ": "))
		}
		return line, nil
	}
}
