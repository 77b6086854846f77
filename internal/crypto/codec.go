package crypto

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/dtroode/credsync/internal/model"
)

// EncVersion identifies the encItem framing produced by Codec.
const EncVersion int32 = 1

// Codec encrypts credential payloads with their content key.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Encrypt serializes payload to JSON and seals it. The result is
// ciphertext || dataIV.
func (c *Codec) Encrypt(payload any, contentKey []byte) ([]byte, error) {
	if len(contentKey) != KeySize {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", KeySize, len(contentKey))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer ClearBytes(data)

	return seal(contentKey, data)
}

// Decrypt unwraps wrappedKey with master and opens encItem into out.
// Any authentication failure of encItem yields model.ErrCorruptData and
// leaves out untouched.
func (c *Codec) Decrypt(master *MasterKey, wrappedKey, encItem []byte, out any) error {
	contentKey, err := master.UnwrapKey(wrappedKey)
	if err != nil {
		return err
	}
	defer ClearBytes(contentKey)

	return c.DecryptWithKey(contentKey, encItem, out)
}

// DecryptWithKey opens encItem with an already unwrapped content key.
// out must be a non-nil pointer; it is overwritten only on success.
func (c *Codec) DecryptWithKey(contentKey, encItem []byte, out any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("decrypt target must be a non-nil pointer, got %T", out)
	}

	if len(encItem) < IVSize+TagSize {
		return model.ErrCorruptData
	}
	plaintext, err := open(contentKey, encItem)
	if err != nil {
		return model.ErrCorruptData
	}
	defer ClearBytes(plaintext)

	if !json.Valid(plaintext) {
		return model.ErrCorruptData
	}
	tmp := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal(plaintext, tmp.Interface()); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCorruptData, err)
	}
	dst.Elem().Set(tmp.Elem())
	return nil
}
