// Package crypto provides the Ed25519 signing and verification used to
// authenticate transaction signers.
//
// The signer set handed to the token program is exactly the set of account
// keys whose signatures verified here; programs never check signatures
// themselves.
//
// Example usage:
//
//	kp := crypto.GenerateKeypair()
//	tx := types.NewTransaction(kp.Pubkey(), blockhash, ix)
//	err := crypto.SignTransaction(tx, kp)
//	err = crypto.VerifyTransaction(tx)
package crypto

import (
	"errors"
	"strconv"
)

// Signature and key sizes for Ed25519.
const (
	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = 32

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = 64

	// SeedSize is the size of an Ed25519 seed in bytes.
	SeedSize = 32
)

// Common errors returned by the crypto package.
var (
	// ErrInvalidPublicKey is returned when a public key has an invalid format.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidSignature is returned when a signature has an invalid format.
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrVerificationFailed is returned when signature verification fails.
	ErrVerificationFailed = errors.New("crypto: signature verification failed")

	// ErrNoSignatures is returned when a transaction has no signatures.
	ErrNoSignatures = errors.New("crypto: transaction has no signatures")

	// ErrSignatureCountMismatch is returned when the number of signatures
	// does not match the expected number of signers.
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")

	// ErrMissingMessage is returned when a transaction is nil.
	ErrMissingMessage = errors.New("crypto: missing transaction message")

	// ErrInvalidSignerIndex is returned when a signer index is out of bounds.
	ErrInvalidSignerIndex = errors.New("crypto: invalid signer index")

	// ErrMissingSigner is returned when signing without the key for a
	// required signer.
	ErrMissingSigner = errors.New("crypto: missing keypair for required signer")

	// ErrMessageSerializationFailed is returned when message serialization fails.
	ErrMessageSerializationFailed = errors.New("crypto: message serialization failed")
)

// TransactionVerificationError contains details about a transaction verification failure.
type TransactionVerificationError struct {
	// SignatureIndex is the index of the signature that failed verification.
	SignatureIndex int

	// SignerPubkey is the base58 representation of the signer's public key.
	SignerPubkey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransactionVerificationError) Error() string {
	return "crypto: transaction verification failed for signer " + e.SignerPubkey +
		" (signature index " + strconv.Itoa(e.SignatureIndex) + "): " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransactionVerificationError) Unwrap() error {
	return e.Err
}
