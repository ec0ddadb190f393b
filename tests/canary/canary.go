// Package canary is an MCTF test compilation unit proving the harness
// can exercise components that sit outside this module's own packages:
// AES-256-CBC round-trip and salt uniqueness (standing in for the
// pooler's password-at-rest encryption, an explicit Non-goal of the
// core), and a JSON construct/serialize/parse/reserialize round-trip
// (standing in for the pooler's on-wire configuration encoding, also an
// explicit Non-goal). Neither is part of this module's domain logic;
// both are here only to prove the ambient stdlib wiring works end to
// end.
package canary

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/Userfrom1995/pgagroal/internal/mctf"
)

func init() {
	mctf.Test("canary_aes_round_trip", aesRoundTrip)
	mctf.Test("canary_aes_salt_uniqueness", aesSaltUniqueness)
	mctf.Test("canary_json_round_trip", jsonRoundTrip)
}

func deriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("pkcs7Unpad: empty input")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("pkcs7Unpad: invalid padding length %d", padLen)
	}
	return data[:len(data)-padLen], nil
}

// encrypt implements AES-256-CBC with a random IV prepended to the
// ciphertext, a canary of the ambient library wiring rather than a
// component this module owns.
func encrypt(plaintext, password string) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("read iv: %w", err)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return append(iv, out...), nil
}

func decrypt(ciphertext []byte, password string) (string, error) {
	if len(ciphertext) < aes.BlockSize {
		return "", fmt.Errorf("ciphertext shorter than one block")
	}
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	iv, body := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext body not block-aligned")
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	unpadded, err := pkcs7Unpad(out)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func aesRoundTrip() error {
	const plaintext = "pgagroal-test-password-round-trip"
	const password = "master-key-for-testing"

	ciphertext, err := encrypt(plaintext, password)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	got, err := decrypt(ciphertext, password)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	if got != plaintext {
		return fmt.Errorf("round trip = %q, want %q", got, plaintext)
	}
	return nil
}

func aesSaltUniqueness() error {
	const plaintext = "pgagroal-test-password-round-trip"
	const password = "master-key-for-testing"

	a, err := encrypt(plaintext, password)
	if err != nil {
		return fmt.Errorf("encrypt #1: %w", err)
	}
	b, err := encrypt(plaintext, password)
	if err != nil {
		return fmt.Errorf("encrypt #2: %w", err)
	}
	if bytes.Equal(a, b) {
		return fmt.Errorf("two encryptions of identical plaintext+password produced identical ciphertext")
	}
	return nil
}

type item struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Active bool     `json:"active"`
	Weight float64  `json:"weight"`
	Tags   []string `json:"tags"`
}

type document struct {
	Title string `json:"title"`
	Items []item `json:"items"`
	Nested struct {
		Values []int             `json:"values"`
		Labels map[string]string `json:"labels"`
	} `json:"nested"`
}

func jsonRoundTrip() error {
	doc := document{
		Title: "pgagroal-test-document",
		Items: []item{
			{Name: "alpha", Count: 1, Active: true, Weight: 1.5, Tags: []string{"a", "b"}},
			{Name: "beta", Count: 0, Active: false, Weight: -2.25, Tags: nil},
		},
	}
	doc.Nested.Values = []int{1, 2, 3}
	doc.Nested.Labels = map[string]string{"k1": "v1", "k2": "v2"}

	first, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var reparsed document
	if err := json.Unmarshal(first, &reparsed); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	second, err := json.Marshal(reparsed)
	if err != nil {
		return fmt.Errorf("re-marshal: %w", err)
	}

	if !bytes.Equal(first, second) {
		return fmt.Errorf("round trip not byte-equal:\n  first:  %s\n  second: %s", first, second)
	}
	return nil
}
