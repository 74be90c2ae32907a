package asset

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// erc20ABI covers the two methods the ledger needs. Amounts are passed
// through in base units; holders must have approved the custody address.
const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20Transferrer moves the reward asset through an on-chain ERC-20
// contract. Custody is the key the gateway signs with.
type ERC20Transferrer struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
	custody  common.Address
	timeout  time.Duration
}

func NewERC20Transferrer(rpcURL, tokenAddress, privateKey string, chainID int64, timeout time.Duration) (*ERC20Transferrer, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custody private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}

	addr := common.HexToAddress(tokenAddress)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &ERC20Transferrer{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		opts:     opts,
		custody:  crypto.PubkeyToAddress(key.PublicKey),
		timeout:  timeout,
	}, nil
}

func (t *ERC20Transferrer) TransferFrom(ctx context.Context, payer string, amount decimal.Decimal) error {
	units, err := toBaseUnits(amount)
	if err != nil {
		return err
	}
	return t.transact(ctx, "transferFrom", common.HexToAddress(payer), t.custody, units)
}

func (t *ERC20Transferrer) Transfer(ctx context.Context, payee string, amount decimal.Decimal) error {
	units, err := toBaseUnits(amount)
	if err != nil {
		return err
	}
	return t.transact(ctx, "transfer", common.HexToAddress(payee), units)
}

func (t *ERC20Transferrer) transact(ctx context.Context, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	opts := *t.opts
	opts.Context = ctx

	tx, err := t.contract.Transact(&opts, method, args...)
	if err != nil {
		return fmt.Errorf("%s reverted: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, t.client, tx)
	if err != nil {
		return fmt.Errorf("%s not mined: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s failed: tx %s reverted", method, tx.Hash().Hex())
	}
	return nil
}

func toBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if !amount.Equal(amount.Truncate(0)) {
		return nil, fmt.Errorf("fractional amount %s not representable in base units", amount)
	}
	return amount.BigInt(), nil
}
