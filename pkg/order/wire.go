package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RawRecord is one order entry as it appears in snapshot records and in
// stream payloads.
type RawRecord struct {
	Order    RawOrder    `json:"order"`
	MetaData RawMetaData `json:"metaData"`
}

type RawOrder struct {
	Maker               string       `json:"maker"`
	Taker               string       `json:"taker"`
	Sender              string       `json:"sender"`
	FeeRecipient        string       `json:"feeRecipient"`
	MakerToken          string       `json:"makerToken"`
	TakerToken          string       `json:"takerToken"`
	MakerAmount         string       `json:"makerAmount"`
	TakerAmount         string       `json:"takerAmount"`
	TakerTokenFeeAmount string       `json:"takerTokenFeeAmount"`
	Pool                string       `json:"pool"`
	Salt                string       `json:"salt"`
	ChainID             json.Number  `json:"chainId"`
	VerifyingContract   string       `json:"verifyingContract"`
	Expiry              json.Number  `json:"expiry"`
	Signature           RawSignature `json:"signature"`
}

type RawSignature struct {
	SignatureType int    `json:"signatureType"`
	R             string `json:"r"`
	S             string `json:"s"`
	V             uint8  `json:"v"`
}

type RawMetaData struct {
	OrderHash                    string `json:"orderHash"`
	RemainingFillableTakerAmount string `json:"remainingFillableTakerAmount"`
	State                        string `json:"state"`
	CreatedAt                    string `json:"createdAt"`
}

// Parse converts a wire record into an OrderWithMetadata. Any error means
// the entry must be dropped; the caller decides how to log it.
func (r *RawRecord) Parse() (*OrderWithMetadata, error) {
	if r.MetaData.OrderHash == "" {
		return nil, ErrMissingHash
	}

	makerToken, err := parseAddress("makerToken", r.Order.MakerToken, true)
	if err != nil {
		return nil, err
	}
	takerToken, err := parseAddress("takerToken", r.Order.TakerToken, true)
	if err != nil {
		return nil, err
	}
	maker, err := parseAddress("maker", r.Order.Maker, true)
	if err != nil {
		return nil, err
	}
	taker, err := parseAddress("taker", r.Order.Taker, false)
	if err != nil {
		return nil, err
	}
	sender, err := parseAddress("sender", r.Order.Sender, false)
	if err != nil {
		return nil, err
	}
	feeRecipient, err := parseAddress("feeRecipient", r.Order.FeeRecipient, false)
	if err != nil {
		return nil, err
	}
	verifyingContract, err := parseAddress("verifyingContract", r.Order.VerifyingContract, false)
	if err != nil {
		return nil, err
	}

	makerAmount, err := parseAmount("makerAmount", r.Order.MakerAmount, true)
	if err != nil {
		return nil, err
	}
	takerAmount, err := parseAmount("takerAmount", r.Order.TakerAmount, true)
	if err != nil {
		return nil, err
	}
	takerFee, err := parseAmount("takerTokenFeeAmount", r.Order.TakerTokenFeeAmount, false)
	if err != nil {
		return nil, err
	}
	salt, err := parseAmount("salt", r.Order.Salt, false)
	if err != nil {
		return nil, err
	}
	remaining, err := parseAmount("remainingFillableTakerAmount", r.MetaData.RemainingFillableTakerAmount, true)
	if err != nil {
		return nil, err
	}

	expiry, err := strconv.ParseInt(r.Order.Expiry.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expiry %q", ErrMalformedField, r.Order.Expiry)
	}

	var chainID int64
	if r.Order.ChainID != "" {
		chainID, err = r.Order.ChainID.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: chainId %q", ErrMalformedField, r.Order.ChainID)
		}
	}

	var createdAt time.Time
	if r.MetaData.CreatedAt != "" {
		// best effort, only used for display
		createdAt, _ = time.Parse(time.RFC3339, r.MetaData.CreatedAt)
	}

	state := State(r.MetaData.State)
	if state == "" {
		state = StateFillable
	}

	return &OrderWithMetadata{
		Order: Order{
			Maker:               maker,
			Taker:               taker,
			Sender:              sender,
			FeeRecipient:        feeRecipient,
			MakerToken:          makerToken,
			TakerToken:          takerToken,
			MakerAmount:         makerAmount,
			TakerAmount:         takerAmount,
			TakerTokenFeeAmount: takerFee,
			Pool:                common.HexToHash(r.Order.Pool),
			Salt:                salt,
			ChainID:             chainID,
			VerifyingContract:   verifyingContract,
			Expiry:              expiry,
			Signature: Signature{
				SignatureType: r.Order.Signature.SignatureType,
				R:             common.HexToHash(r.Order.Signature.R),
				S:             common.HexToHash(r.Order.Signature.S),
				V:             r.Order.Signature.V,
			},
		},
		Hash:                         r.MetaData.OrderHash,
		RemainingFillableTakerAmount: remaining,
		State:                        state,
		CreatedAt:                    createdAt,
	}, nil
}

func parseAddress(field, s string, required bool) (common.Address, error) {
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q", ErrMalformedField, field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string, required bool) (decimal.Decimal, error) {
	if s == "" {
		if required {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", ErrMalformedField, field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrMalformedField, field)
	}
	return d, nil
}
