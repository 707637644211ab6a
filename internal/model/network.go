package model

import "github.com/cogniseal/cogniseal-ledger/internal/chain"

// NetworkInfo describes the chain a client is talking to.
type NetworkInfo struct {
	ChainID          uint64         `json:"chain_id"`
	ContractAddress  chain.Address  `json:"contract_address"`
	NetworkPublicKey chain.HexBytes `json:"network_public_key"`
	BlockNumber      uint64         `json:"block_number"`
}

// ChallengeRequest asks for a login nonce for an address.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required,address"`
}

// ChallengeResponse carries the message the wallet must sign.
type ChallengeResponse struct {
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

// WalletLoginRequest proves control of an address by signing the challenge.
type WalletLoginRequest struct {
	Address   string `json:"address" binding:"required,address"`
	PublicKey string `json:"public_key" binding:"required,hexadecimal,len=64"`
	Signature string `json:"signature" binding:"required,hexadecimal,len=128"`
}

// WalletLoginResponse is returned after a successful wallet login.
type WalletLoginResponse struct {
	Token     string        `json:"token"`
	Address   chain.Address `json:"address"`
	ExpiresAt int64         `json:"expires_at"`
}
