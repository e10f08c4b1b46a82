package provider

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Minimal ABI encoding for the three contract calls the adapters issue.
// Only static address/uint256 arguments plus one trailing dynamic string
// are needed, so a full ABI package would be dead weight here.

// methodSelector returns the 4-byte selector for a canonical method signature.
func methodSelector(signature string) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	return hash.Sum(nil)[:4]
}

// encodeAddress left-pads a 20-byte hex address to a 32-byte word.
func encodeAddress(address string) ([]byte, error) {
	hexPart := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(hexPart) != 40 {
		return nil, fmt.Errorf("address %s is not 20 bytes", address)
	}

	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, fmt.Errorf("address %s is not valid hex: %w", address, err)
	}

	word := make([]byte, 32)
	copy(word[12:], raw)
	return word, nil
}

// encodeUint256 encodes a big integer as a 32-byte word.
func encodeUint256(value *big.Int) []byte {
	word := make([]byte, 32)
	value.FillBytes(word)
	return word
}

// encodeString encodes a dynamic string given its head offset.
// Returns the offset word and the tail (length word plus padded bytes).
func encodeString(value string, offset int) (head, tail []byte) {
	head = encodeUint256(big.NewInt(int64(offset)))

	tail = encodeUint256(big.NewInt(int64(len(value))))
	padded := (len(value) + 31) / 32 * 32
	data := make([]byte, padded)
	copy(data, value)
	return head, append(tail, data...)
}

// encodeMintCall builds calldata for mint(address,uint256,string).
func encodeMintCall(recipient string, tokenID *big.Int, tokenURI string) ([]byte, error) {
	addr, err := encodeAddress(recipient)
	if err != nil {
		return nil, err
	}

	// Three head words: address, uint256, string offset (0x60).
	head, tail := encodeString(tokenURI, 3*32)

	calldata := methodSelector("mint(address,uint256,string)")
	calldata = append(calldata, addr...)
	calldata = append(calldata, encodeUint256(tokenID)...)
	calldata = append(calldata, head...)
	calldata = append(calldata, tail...)
	return calldata, nil
}

// encodeTransferCall builds calldata for safeTransferFrom(address,address,uint256).
func encodeTransferCall(from, to string, tokenID *big.Int) ([]byte, error) {
	fromWord, err := encodeAddress(from)
	if err != nil {
		return nil, err
	}
	toWord, err := encodeAddress(to)
	if err != nil {
		return nil, err
	}

	calldata := methodSelector("safeTransferFrom(address,address,uint256)")
	calldata = append(calldata, fromWord...)
	calldata = append(calldata, toWord...)
	calldata = append(calldata, encodeUint256(tokenID)...)
	return calldata, nil
}

// encodeOwnerOfCall builds calldata for ownerOf(uint256).
func encodeOwnerOfCall(tokenID *big.Int) []byte {
	calldata := methodSelector("ownerOf(uint256)")
	return append(calldata, encodeUint256(tokenID)...)
}

// decodeAddressResult extracts a 0x-prefixed address from a 32-byte
// return word.
func decodeAddressResult(data []byte) (string, error) {
	if len(data) < 32 {
		return "", fmt.Errorf("result too short for an address: %d bytes", len(data))
	}
	return "0x" + hex.EncodeToString(data[12:32]), nil
}

// parseTokenID converts a decimal asset id into a uint256 token id.
func parseTokenID(assetID string) (*big.Int, error) {
	tokenID, ok := new(big.Int).SetString(assetID, 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("asset id %q is not a valid token id", assetID)
	}
	return tokenID, nil
}
