package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/types"
)

// Keypair is an Ed25519 signing key.
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair creates a random keypair.
func GenerateKeypair() Keypair {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("crypto: generate key: %v", err))
	}
	return Keypair{private: priv}
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != SeedSize {
		return Keypair{}, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidPublicKey, SeedSize, len(seed))
	}
	return Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Pubkey returns the public half of the keypair.
func (kp Keypair) Pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], kp.private.Public().(ed25519.PublicKey))
	return pk
}

// Sign signs message.
func (kp Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(kp.private, message))
	return sig
}

// VerifySignature verifies a single Ed25519 signature.
// Returns false if the public key or signature have invalid lengths.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// VerifySignatureStrict is like VerifySignature but returns an error
// with details about why verification failed.
func VerifySignatureStrict(pubkey, message, signature []byte) error {
	if len(pubkey) != PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(pubkey))
	}
	if len(signature) != SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(signature))
	}
	if !ed25519.Verify(pubkey, message, signature) {
		return ErrVerificationFailed
	}
	return nil
}

// SignTransaction fills in every required signature of tx. Each required
// signer must be among the given keypairs.
func SignTransaction(tx *types.Transaction, signers ...Keypair) error {
	if tx == nil {
		return ErrMissingMessage
	}

	messageBytes, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageSerializationFailed, err)
	}

	byKey := make(map[types.Pubkey]Keypair, len(signers))
	for _, kp := range signers {
		byKey[kp.Pubkey()] = kp
	}

	required := tx.Message.Signers()
	tx.Signatures = make([]types.Signature, len(required))
	for i, key := range required {
		kp, ok := byKey[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		tx.Signatures[i] = kp.Sign(messageBytes)
	}
	return nil
}

// VerifyTransaction verifies all signatures on a transaction.
// It serializes the message and verifies each signature against the
// corresponding signer's public key.
//
// Returns nil if all signatures are valid, or an error describing
// which signature failed and why.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}

	numSignatures := len(tx.Signatures)
	if numSignatures == 0 {
		return ErrNoSignatures
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numSignatures != numRequired {
		return fmt.Errorf("%w: expected %d signatures, got %d",
			ErrSignatureCountMismatch, numRequired, numSignatures)
	}

	messageBytes, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageSerializationFailed, err)
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) < numSignatures {
		return fmt.Errorf("%w: not enough account keys for signatures",
			ErrInvalidSignerIndex)
	}

	for i := 0; i < numSignatures; i++ {
		pubkey := accountKeys[i]
		signature := tx.Signatures[i]

		if !ed25519.Verify(pubkey[:], messageBytes, signature[:]) {
			return &TransactionVerificationError{
				SignatureIndex: i,
				SignerPubkey:   pubkey.String(),
				Err:            ErrVerificationFailed,
			}
		}
	}

	return nil
}
