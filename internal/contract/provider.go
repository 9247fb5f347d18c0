package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pvzzle/mintbot/internal/engine"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// mintABI covers the mint signatures the bot knows how to drive. The
// configured method must be one of these or construction fails.
const mintABI = `[
  {"type":"function","name":"mint","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"mintTo","stateMutability":"payable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
  {"type":"function","name":"safeMint","stateMutability":"payable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
  {"type":"function","name":"publicMint","stateMutability":"payable","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"mintBatch","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"quantity","type":"uint256"}],"outputs":[]}
]`

// Provider encodes mint calls against one target contract. It implements
// engine.CallDataProvider.
type Provider struct {
	parsed   abi.ABI
	method   string
	contract common.Address
	value    *big.Int
}

// New validates that method exists in the known mint surface. A missing
// method is a fatal contract error: retrying cannot fix it.
func New(contract common.Address, method string, valueWei *big.Int) (*Provider, error) {
	if (contract == common.Address{}) {
		return nil, fmt.Errorf("%w: zero contract address", engine.ErrValidation)
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "mint"
	}

	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("parse mint abi: %w", err)
	}
	if _, ok := parsed.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: method %q not found in mint interface", engine.ErrFatalContract, method)
	}

	if valueWei == nil {
		valueWei = big.NewInt(0)
	}
	return &Provider{
		parsed:   parsed,
		method:   method,
		contract: contract,
		value:    new(big.Int).Set(valueWei),
	}, nil
}

func (p *Provider) Address() common.Address { return p.contract }

func (p *Provider) MintValue() *big.Int { return new(big.Int).Set(p.value) }

// EncodeMintCall packs the configured method. Address inputs receive the
// minting wallet, uint inputs a quantity of one.
func (p *Provider) EncodeMintCall(recipient common.Address) ([]byte, error) {
	m := p.parsed.Methods[p.method]
	args := make([]any, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		switch in.Type.T {
		case abi.AddressTy:
			args = append(args, recipient)
		case abi.UintTy:
			args = append(args, big.NewInt(1))
		default:
			return nil, fmt.Errorf("%w: unsupported mint argument type %s", engine.ErrFatalContract, in.Type)
		}
	}
	data, err := p.parsed.Pack(p.method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", p.method, err)
	}
	return data, nil
}
