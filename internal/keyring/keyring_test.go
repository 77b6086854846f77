package keyring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type promptRecorder struct {
	answer  string
	err     error
	prompts []string
}

func (p *promptRecorder) prompt(prompt string) ([]byte, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return []byte(p.answer), nil
}

func TestSecrets_StoredValueSkipsPrompt(t *testing.T) {
	keyring.MockInit()
	p := &promptRecorder{answer: "unused"}
	s := New("alice", p.prompt, false)

	require.NoError(t, s.SavePassphrase("correct horse"))
	got, err := s.Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "correct horse", got)
	assert.Empty(t, p.prompts)
	assert.True(t, s.Has())
}

func TestSecrets_PromptsAndRemembers(t *testing.T) {
	keyring.MockInit()
	p := &promptRecorder{answer: "hunter2"}
	s := New("alice", p.prompt, true)

	got, err := s.AccountPassword()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
	assert.Equal(t, []string{"Password for alice: "}, p.prompts)

	got, err = s.AccountPassword()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
	assert.Len(t, p.prompts, 1, "second read comes from the keyring")
}

func TestSecrets_PromptWithoutRemember(t *testing.T) {
	keyring.MockInit()
	p := &promptRecorder{answer: "pass"}
	s := New("bob", p.prompt, false)

	_, err := s.Passphrase()
	require.NoError(t, err)
	assert.False(t, s.Has())
}

func TestSecrets_PromptErrors(t *testing.T) {
	keyring.MockInit()

	_, err := New("bob", (&promptRecorder{}).prompt, false).Passphrase()
	assert.Error(t, err)

	boom := errors.New("no tty")
	_, err = New("bob", (&promptRecorder{err: boom}).prompt, false).Passphrase()
	assert.ErrorIs(t, err, boom)
}

func TestSecrets_Forget(t *testing.T) {
	keyring.MockInit()
	s := New("carol", (&promptRecorder{}).prompt, false)

	require.NoError(t, s.SavePassphrase("p"))
	require.NoError(t, s.SaveAccountPassword("pw"))
	require.NoError(t, s.Forget())
	assert.False(t, s.Has())
	require.NoError(t, s.Forget())
}
