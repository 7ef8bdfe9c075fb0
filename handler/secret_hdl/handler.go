/*
 * Copyright 2025 The project-manager authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package secret_hdl

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	lib_model "github.com/gitops-selfservice/project-manager/lib/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"
	allChars   = upperChars + lowerChars + digitChars
)

type Handler struct {
	recipient  age.Recipient
	identities []age.Identity
}

// New parses the environment public key and loads the private identity from
// mounted material. The identity is read exactly once, at construction.
func New(publicKey, privateKeyPath string) (*Handler, error) {
	h := &Handler{}
	if publicKey != "" {
		recipient, err := age.ParseX25519Recipient(publicKey)
		if err != nil {
			return nil, fmt.Errorf("parsing public key failed: %s", err)
		}
		h.recipient = recipient
	}
	if privateKeyPath != "" {
		file, err := os.Open(privateKeyPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		identities, err := age.ParseIdentities(file)
		if err != nil {
			return nil, fmt.Errorf("parsing private key failed: %s", err)
		}
		h.identities = identities
	}
	return h, nil
}

// NewWithKeys wires parsed keys directly, bypassing mounted material.
func NewWithKeys(recipient age.Recipient, identities ...age.Identity) *Handler {
	return &Handler{recipient: recipient, identities: identities}
}

// Generate returns a random alphanumeric value of the given length. Values
// of sufficient length contain at least one character per class.
func (h *Handler) Generate(length int) (string, error) {
	if length < 1 {
		return "", lib_model.NewInvalidInputError(fmt.Errorf("invalid length %d", length))
	}
	minEach := length / 6
	if minEach < 1 {
		minEach = 1
	}
	if minEach*3 > length {
		minEach = 0
	}
	var chars []byte
	for i := 0; i < minEach; i++ {
		for _, set := range []string{upperChars, lowerChars, digitChars} {
			c, err := pick(set)
			if err != nil {
				return "", err
			}
			chars = append(chars, c)
		}
	}
	for len(chars) < length {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	if err := shuffle(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

// HashOfRandom generates a random value of the given length and returns it
// together with its bcrypt hash. The plain value is for one-time display.
func (h *Handler) HashOfRandom(length int) (string, string, error) {
	plain, err := h.Generate(length)
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", lib_model.NewInternalError(err)
	}
	return plain, string(hash), nil
}

// Encrypt returns the value encrypted for the environment public key,
// armored and carrying the encrypted-raw prefix.
func (h *Handler) Encrypt(value string) (string, error) {
	armored, err := h.encryptArmored(value)
	if err != nil {
		return "", err
	}
	return lib_model.SecretPrefixAge + armored, nil
}

// EncryptBase64 returns the armored ciphertext base64-packed into a single
// line, for use in files where multi-line values are not an option.
func (h *Handler) EncryptBase64(value string) (string, error) {
	armored, err := h.encryptArmored(value)
	if err != nil {
		return "", err
	}
	return lib_model.SecretPrefixAgeBase64 + base64.StdEncoding.EncodeToString([]byte(armored)), nil
}

// Decrypt inspects the encoding prefix. Unprefixed values are plaintext and
// returned unchanged. Prefixed values that do not decrypt under the held
// identity yield a KeyMismatchError; payloads that cannot be decoded yield a
// MalformedCiphertextError.
func (h *Handler) Decrypt(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, lib_model.SecretPrefixAgeBase64):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, lib_model.SecretPrefixAgeBase64))
		if err != nil {
			return "", lib_model.NewMalformedCiphertextError(err)
		}
		return h.decryptArmored(string(raw))
	case strings.HasPrefix(value, lib_model.SecretPrefixAge):
		return h.decryptArmored(strings.TrimPrefix(value, lib_model.SecretPrefixAge))
	default:
		return value, nil
	}
}

func (h *Handler) encryptArmored(value string) (string, error) {
	if h.recipient == nil {
		return "", lib_model.NewInternalError(errors.New("no public key configured"))
	}
	if value == "" {
		return "", lib_model.NewInvalidInputError(errors.New("empty value"))
	}
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	ew, err := age.Encrypt(aw, h.recipient)
	if err != nil {
		return "", lib_model.NewInternalError(err)
	}
	if _, err = io.WriteString(ew, value); err != nil {
		return "", lib_model.NewInternalError(err)
	}
	if err = ew.Close(); err != nil {
		return "", lib_model.NewInternalError(err)
	}
	if err = aw.Close(); err != nil {
		return "", lib_model.NewInternalError(err)
	}
	return buf.String(), nil
}

func (h *Handler) decryptArmored(armored string) (string, error) {
	if len(h.identities) == 0 {
		return "", lib_model.NewInternalError(errors.New("no private key loaded"))
	}
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(armored)), h.identities...)
	if err != nil {
		return "", classifyDecryptErr(err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", classifyDecryptErr(err)
	}
	return string(plain), nil
}

func classifyDecryptErr(err error) error {
	var nim *age.NoIdentityMatchError
	if errors.As(err, &nim) {
		return lib_model.NewKeyMismatchError(err)
	}
	return lib_model.NewMalformedCiphertextError(err)
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, lib_model.NewInternalError(err)
	}
	return set[n.Int64()], nil
}

func shuffle(chars []byte) error {
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return lib_model.NewInternalError(err)
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}
	return nil
}
