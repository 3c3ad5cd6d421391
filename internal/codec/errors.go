package codec

import "errors"

var (
	// ErrEnvelopeCorruption reports a malformed envelope header.
	ErrEnvelopeCorruption = errors.New("envelope corrupted")
	// ErrSignatureIncompatible reports an envelope written with a transform
	// the local chain does not know.
	ErrSignatureIncompatible = errors.New("signature incompatible with chain")
	ErrSignatureTooLong      = errors.New("chain signature too long")
	ErrDuplicateTag          = errors.New("transform tag already registered")
	// ErrDataCorruption is the common kind wrapped by transforms whose
	// integrity check fails (authentication tag, checksum).
	ErrDataCorruption = errors.New("data corrupted")
)
