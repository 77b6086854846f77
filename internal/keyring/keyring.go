// Package keyring keeps the vault passphrase and the account password of a
// device in the OS keyring, prompting on the terminal when they are missing.
package keyring

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "credsync"

const (
	passphraseKind = "passphrase"
	passwordKind   = "password"
)

// Prompter asks the user for a secret.
type Prompter func(prompt string) ([]byte, error)

// ReadPassword reads a secret from the terminal without echo.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return secret, nil
}

// Secrets resolves the secrets of one account.
type Secrets struct {
	login    string
	prompt   Prompter
	remember bool
}

// New returns Secrets for login. Prompted values are written back to the
// keyring when remember is set.
func New(login string, prompt Prompter, remember bool) *Secrets {
	if prompt == nil {
		prompt = ReadPassword
	}
	return &Secrets{login: login, prompt: prompt, remember: remember}
}

// Passphrase returns the vault passphrase.
func (s *Secrets) Passphrase() (string, error) {
	return s.resolve(passphraseKind, "Vault passphrase: ")
}

// AccountPassword returns the password used to log in to the server.
func (s *Secrets) AccountPassword() (string, error) {
	return s.resolve(passwordKind, fmt.Sprintf("Password for %s: ", s.login))
}

// SavePassphrase stores the vault passphrase.
func (s *Secrets) SavePassphrase(passphrase string) error {
	return keyring.Set(serviceName, s.user(passphraseKind), passphrase)
}

// SaveAccountPassword stores the account password.
func (s *Secrets) SaveAccountPassword(password string) error {
	return keyring.Set(serviceName, s.user(passwordKind), password)
}

// Forget removes both secrets. Missing entries are not an error.
func (s *Secrets) Forget() error {
	var errs []error
	for _, kind := range []string{passphraseKind, passwordKind} {
		if err := keyring.Delete(serviceName, s.user(kind)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has reports whether the passphrase is stored.
func (s *Secrets) Has() bool {
	_, err := keyring.Get(serviceName, s.user(passphraseKind))
	return err == nil
}

func (s *Secrets) resolve(kind, prompt string) (string, error) {
	secret, err := keyring.Get(serviceName, s.user(kind))
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("failed to read %s from keyring: %w", kind, err)
	}

	entered, err := s.prompt(prompt)
	if err != nil {
		return "", err
	}
	if len(entered) == 0 {
		return "", fmt.Errorf("%s must not be empty", kind)
	}
	secret = string(entered)
	clear(entered)

	if s.remember {
		if err := keyring.Set(serviceName, s.user(kind), secret); err != nil {
			return "", fmt.Errorf("failed to save %s to keyring: %w", kind, err)
		}
	}
	return secret, nil
}

func (s *Secrets) user(kind string) string {
	return kind + ":" + s.login
}
