package tonconnect

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const nonceSize = 24

// keyPair is the X25519 session key pair of one bridge connection. The hex
// encoded public key doubles as the bridge client id.
type keyPair struct {
	public  *[32]byte
	private *[32]byte
}

func newKeyPair() (keyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return keyPair{}, fmt.Errorf("failed to generate session keys: %w", err)
	}
	return keyPair{public: pub, private: priv}, nil
}

func (k keyPair) clientID() string {
	return hex.EncodeToString(k.public[:])
}

// seal encrypts msg for peer, prefixing the random nonce.
func (k keyPair) seal(msg []byte, peer *[32]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return box.Seal(nonce[:], msg, &nonce, peer, k.private), nil
}

// open decrypts a nonce-prefixed box sent by peer.
func (k keyPair) open(data []byte, peer *[32]byte) ([]byte, error) {
	if len(data) < nonceSize+box.Overhead {
		return nil, fmt.Errorf("encrypted message too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	msg, ok := box.Open(nil, data[nonceSize:], &nonce, peer, k.private)
	if !ok {
		return nil, fmt.Errorf("failed to decrypt message")
	}
	return msg, nil
}

func parsePeerKey(clientID string) (*[32]byte, error) {
	raw, err := hex.DecodeString(clientID)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid client id '%s'", clientID)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
