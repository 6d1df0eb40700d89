package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PermitPrimaryType is the EIP-712 primary type of a Permit2 single-token permit
const PermitPrimaryType = "PermitSingle"

// PermitDetails is the per-token part of a permit message
type PermitDetails struct {
	Token      common.Address `json:"token"`
	Amount     *BigInt        `json:"amount"`
	Expiration *BigInt        `json:"expiration"`
	Nonce      *BigInt        `json:"nonce"`
}

// PermitMessage is the EIP-712 message a wallet signs
type PermitMessage struct {
	Details     PermitDetails  `json:"details"`
	Spender     common.Address `json:"spender"`
	SigDeadline *BigInt        `json:"sigDeadline"`
}

// PermitPayload is either "no permit needed" or a typed-data permit to sign
type PermitPayload struct {
	NeedsPermit bool                     `json:"needsPermit"`
	Domain      apitypes.TypedDataDomain `json:"domain"`
	Types       apitypes.Types           `json:"types"`
	Message     PermitMessage            `json:"message"`
}

// Nonce returns the permit nonce, nil when no permit is needed
func (p *PermitPayload) Nonce() *big.Int {
	if p == nil || !p.NeedsPermit || p.Message.Details.Nonce == nil {
		return nil
	}
	return p.Message.Details.Nonce.Int
}

// SameNonce reports whether both payloads carry the same permit nonce
func (p *PermitPayload) SameNonce(other *PermitPayload) bool {
	a, b := p.Nonce(), other.Nonce()
	if a == nil || b == nil {
		return false
	}
	return a.Cmp(b) == 0
}

// Expired reports whether the signature deadline has passed at now
func (p *PermitPayload) Expired(now time.Time) bool {
	if p == nil || p.Message.SigDeadline == nil || p.Message.SigDeadline.Int == nil {
		return false
	}
	return p.Message.SigDeadline.Int.Cmp(big.NewInt(now.Unix())) <= 0
}

// TypedData renders the payload in the form wallets sign
func (p *PermitPayload) TypedData() (apitypes.TypedData, error) {
	if p == nil || !p.NeedsPermit {
		return apitypes.TypedData{}, fmt.Errorf("payload does not require a permit")
	}

	details := p.Message.Details
	if details.Amount == nil || details.Expiration == nil || details.Nonce == nil || p.Message.SigDeadline == nil {
		return apitypes.TypedData{}, fmt.Errorf("permit message is incomplete")
	}

	typesCopy := apitypes.Types{}
	for name, fields := range p.Types {
		typesCopy[name] = fields
	}
	if _, ok := typesCopy["EIP712Domain"]; !ok {
		typesCopy["EIP712Domain"] = domainFields(p.Domain)
	}

	return apitypes.TypedData{
		Types:       typesCopy,
		PrimaryType: PermitPrimaryType,
		Domain:      p.Domain,
		Message: apitypes.TypedDataMessage{
			"details": map[string]interface{}{
				"token":      details.Token.Hex(),
				"amount":     details.Amount.String(),
				"expiration": details.Expiration.String(),
				"nonce":      details.Nonce.String(),
			},
			"spender":     p.Message.Spender.Hex(),
			"sigDeadline": p.Message.SigDeadline.String(),
		},
	}, nil
}

func domainFields(domain apitypes.TypedDataDomain) []apitypes.Type {
	fields := []apitypes.Type{{Name: "name", Type: "string"}}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	return fields
}
