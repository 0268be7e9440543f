package relayer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ERC-20 transfer(address,uint256) fragment, the only contract surface the
// relayer touches.
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// submitGasLimit is the fallback gas limit when live estimation fails at
// submission time.
const submitGasLimit = uint64(100000)

// receiptPollInterval is how often AwaitConfirmation polls for a receipt.
const receiptPollInterval = 2 * time.Second

// EVMClient implements ChainClient against an EVM JSON-RPC endpoint, signing
// transfers with the relaying account's private key.
type EVMClient struct {
	client      *ethclient.Client
	chainID     *big.Int
	privateKey  *ecdsa.PrivateKey
	address     common.Address
	transferABI abi.ABI
}

// NewEVMClient dials the RPC endpoint and derives the relaying account from
// a hex-encoded private key (with or without "0x" prefix).
func NewEVMClient(rpcURL, privateKeyHex string, chainID int64) (*EVMClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	transferABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 transfer ABI: %w", err)
	}

	return &EVMClient{
		client:      client,
		chainID:     big.NewInt(chainID),
		privateKey:  privateKey,
		address:     crypto.PubkeyToAddress(privateKey.PublicKey),
		transferABI: transferABI,
	}, nil
}

// Address returns the relaying account's address.
func (c *EVMClient) Address() common.Address {
	return c.address
}

// Balance reads the relaying account's native balance in wei.
func (c *EVMClient) Balance(ctx context.Context) (*big.Int, error) {
	return c.client.BalanceAt(ctx, c.address, nil)
}

// GasPrice returns the suggested gas price in wei.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

// EstimateTransferGas estimates the gas units for transfer(to, amount) on the
// token contract, called from the relaying account.
func (c *EVMClient) EstimateTransferGas(ctx context.Context, token, to common.Address, amount *big.Int) (uint64, error) {
	data, err := c.transferABI.Pack("transfer", to, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to encode transfer calldata: %w", err)
	}

	return c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &token,
		Data: data,
	})
}

// SubmitTransfer signs and broadcasts transfer(to, amount) on the token
// contract as an EIP-1559 transaction, returning the pending hash.
func (c *EVMClient) SubmitTransfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := c.transferABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transfer calldata: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get pending nonce: %w", err)
	}

	gasTipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	// Use the legacy gas price as a conservative fee cap.
	gasFeeCap, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := c.EstimateTransferGas(ctx, token, to, amount)
	if err != nil {
		gasLimit = submitGasLimit
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &token,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return signed.Hash(), nil
}

// AwaitConfirmation polls for the transaction receipt until the context
// expires. A reverted execution is reported as an error, not a confirmation.
func (c *EVMClient) AwaitConfirmation(ctx context.Context, txHash common.Hash) (string, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return "", fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return txHash.Hex(), nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return "", fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("confirmation of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ ChainClient = (*EVMClient)(nil)
