package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// StableDumps renders an object as canonical JSON. encoding/json sorts map
// keys and struct fields keep declaration order, so repeated calls over the
// same value produce identical bytes.
func StableDumps(obj any) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ComputeRowHash digests a normalized feed row. The hash is the idempotency
// key for replayed uploads: same content, same hash, forever.
func ComputeRowHash(obj any) (string, error) {
	payload, err := StableDumps(obj)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}
