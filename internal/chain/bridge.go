package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/config"
)

var (
	// ErrNotConfigured is returned when no contract is configured.
	ErrNotConfigured = errors.New("blockchain bridge is not configured")
	// ErrMintingDisabled is returned by MintCredit when no signing key is configured.
	ErrMintingDisabled = errors.New("minting requires a signing key")
)

const gwei = 1_000_000_000

// OnChainCredit mirrors one entry of the contract's credits mapping.
type OnChainCredit struct {
	ID      int64    `json:"id"`
	Owner   string   `json:"owner"`
	Creator string   `json:"creator"`
	Amount  *big.Int `json:"amount"`
	Price   *big.Int `json:"price"`
	ForSale bool     `json:"forSale"`
	Expired bool     `json:"expired"`
}

// Bridge talks to the carbon credit contract.
type Bridge interface {
	ListCredits(ctx context.Context) ([]OnChainCredit, error)
	MintCredit(ctx context.Context, amount, price int64) (string, error)
}

// boundContract is the part of *bind.BoundContract the bridge relies on.
type boundContract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

type EVMBridge struct {
	contract boundContract
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	gasLimit uint64
	gasPrice *big.Int
	logger   *zap.Logger
}

// NewEVMBridge dials the RPC node and binds the configured contract.
func NewEVMBridge(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger) (*EVMBridge, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	parsed, err := LoadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC node: %w", err)
	}

	b := &EVMBridge{
		client:   client,
		gasLimit: cfg.GasLimit,
		gasPrice: new(big.Int).Mul(big.NewInt(cfg.GasPriceGwei), big.NewInt(gwei)),
		logger:   logger,
	}
	b.contract = bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), parsed, client, client, client)

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
		b.key = key
		b.chainID = chainID
	}

	return b, nil
}

// ListCredits reads every credit the contract has minted so far.
func (b *EVMBridge) ListCredits(ctx context.Context) ([]OnChainCredit, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := b.contract.Call(opts, &out, "getNextCreditId"); err != nil {
		return nil, fmt.Errorf("getNextCreditId failed: %w", err)
	}
	total, err := bigAt(out, 0)
	if err != nil {
		return nil, fmt.Errorf("getNextCreditId: %w", err)
	}
	if !total.IsInt64() {
		return nil, fmt.Errorf("credit count %s out of range", total)
	}

	credits := make([]OnChainCredit, 0, total.Int64())
	for i := int64(0); i < total.Int64(); i++ {
		out = nil
		if err := b.contract.Call(opts, &out, "credits", big.NewInt(i)); err != nil {
			return nil, fmt.Errorf("credits(%d) failed: %w", i, err)
		}
		credit, err := decodeCredit(i, out)
		if err != nil {
			return nil, fmt.Errorf("credits(%d): %w", i, err)
		}
		credits = append(credits, credit)
	}
	return credits, nil
}

// MintCredit submits generateCredit(amount, price) and returns the transaction hash.
// It does not wait for the transaction to be mined.
func (b *EVMBridge) MintCredit(ctx context.Context, amount, price int64) (string, error) {
	if b.key == nil {
		return "", ErrMintingDisabled
	}

	opts, err := bind.NewKeyedTransactorWithChainID(b.key, b.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = b.gasLimit
	opts.GasPrice = b.gasPrice

	tx, err := b.contract.Transact(opts, "generateCredit", big.NewInt(amount), big.NewInt(price))
	if err != nil {
		return "", fmt.Errorf("generateCredit failed: %w", err)
	}

	b.logger.Info("Mint transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Int64("amount", amount),
		zap.Int64("price", price))
	return tx.Hash().Hex(), nil
}

func (b *EVMBridge) Close() {
	if b.client != nil {
		b.client.Close()
	}
}

func decodeCredit(id int64, out []interface{}) (OnChainCredit, error) {
	if len(out) < 6 {
		return OnChainCredit{}, fmt.Errorf("expected 6 fields, got %d", len(out))
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return OnChainCredit{}, fmt.Errorf("owner has type %T", out[0])
	}
	creator, ok := out[1].(common.Address)
	if !ok {
		return OnChainCredit{}, fmt.Errorf("creator has type %T", out[1])
	}
	amount, err := bigAt(out, 2)
	if err != nil {
		return OnChainCredit{}, err
	}
	price, err := bigAt(out, 3)
	if err != nil {
		return OnChainCredit{}, err
	}
	forSale, ok := out[4].(bool)
	if !ok {
		return OnChainCredit{}, fmt.Errorf("forSale has type %T", out[4])
	}
	expired, ok := out[5].(bool)
	if !ok {
		return OnChainCredit{}, fmt.Errorf("expired has type %T", out[5])
	}

	return OnChainCredit{
		ID:      id,
		Owner:   owner.Hex(),
		Creator: creator.Hex(),
		Amount:  amount,
		Price:   price,
		ForSale: forSale,
		Expired: expired,
	}, nil
}

func bigAt(out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d has type %T", i, out[i])
	}
	return v, nil
}
