package orca

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// poolDefinition is the JSON shape of one pool in a pools file.
type poolDefinition struct {
	Account        string `json:"account"`
	Authority      string `json:"authority"`
	ProgramID      string `json:"program_id"`
	PoolTokenMint  string `json:"pool_token_mint"`
	FeeAccount     string `json:"fee_account"`
	TokenAMint     string `json:"token_a_mint"`
	TokenBMint     string `json:"token_b_mint"`
	TokenAccountA  string `json:"token_account_a"`
	TokenAccountB  string `json:"token_account_b"`
	TokenABalance  uint64 `json:"token_a_balance"`
	TokenBBalance  uint64 `json:"token_b_balance"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
}

// LoadPools reads a pool table from a JSON file.
func LoadPools(path string) ([]Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pools file: %w", err)
	}
	var definitions []poolDefinition
	if err := json.Unmarshal(data, &definitions); err != nil {
		return nil, fmt.Errorf("decoding pools file: %w", err)
	}

	pools := make([]Pool, 0, len(definitions))
	for i, def := range definitions {
		pool, err := def.toPool()
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (d poolDefinition) toPool() (Pool, error) {
	keys := map[string]*solana.PublicKey{}
	pool := Pool{
		TokenABalance:  d.TokenABalance,
		TokenBBalance:  d.TokenBBalance,
		FeeNumerator:   d.FeeNumerator,
		FeeDenominator: d.FeeDenominator,
	}
	keys[d.Account] = &pool.Account
	keys[d.Authority] = &pool.Authority
	keys[d.ProgramID] = &pool.ProgramID
	keys[d.PoolTokenMint] = &pool.PoolTokenMint
	keys[d.FeeAccount] = &pool.FeeAccount
	keys[d.TokenAMint] = &pool.TokenAMint
	keys[d.TokenBMint] = &pool.TokenBMint
	keys[d.TokenAccountA] = &pool.TokenAccountA
	keys[d.TokenAccountB] = &pool.TokenAccountB
	for raw, target := range keys {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return Pool{}, fmt.Errorf("invalid pubkey %q: %w", raw, err)
		}
		*target = pk
	}
	return pool, nil
}

// StaticService routes over a fixed pool table. The table is injected at
// construction, typically loaded from a pools file.
type StaticService struct {
	pools []Pool
}

// NewStaticService builds a Service over the given pool table.
func NewStaticService(pools []Pool) *StaticService {
	return &StaticService{pools: pools}
}

func (s *StaticService) GetTradablePoolsPairs(_ context.Context, fromMint, toMint solana.PublicKey) ([]PoolsPair, error) {
	if fromMint.Equals(toMint) {
		return nil, fmt.Errorf("cannot route %s to itself", fromMint)
	}

	var pairs []PoolsPair

	for _, pool := range s.pools {
		if pool.HasMint(fromMint) && pool.HasMint(toMint) {
			pairs = append(pairs, PoolsPair{oriented(pool, fromMint)})
		}
	}

	for _, first := range s.pools {
		if !first.HasMint(fromMint) || first.HasMint(toMint) {
			continue
		}
		intermediate, err := first.OutputMint(fromMint)
		if err != nil {
			continue
		}
		for _, second := range s.pools {
			if second.Account.Equals(first.Account) {
				continue
			}
			if second.HasMint(intermediate) && second.HasMint(toMint) {
				pairs = append(pairs, PoolsPair{
					oriented(first, fromMint),
					oriented(second, intermediate),
				})
			}
		}
	}

	return pairs, nil
}

// oriented returns a copy of the pool with the input mint on the A side, so a
// route always enters each pool through token A.
func oriented(pool Pool, inputMint solana.PublicKey) Pool {
	if pool.TokenAMint.Equals(inputMint) {
		return pool
	}
	pool.TokenAMint, pool.TokenBMint = pool.TokenBMint, pool.TokenAMint
	pool.TokenAccountA, pool.TokenAccountB = pool.TokenAccountB, pool.TokenAccountA
	pool.TokenABalance, pool.TokenBBalance = pool.TokenBBalance, pool.TokenABalance
	return pool
}

func (s *StaticService) FindBestPoolsPairForInputAmount(inputAmount uint64, pairs []PoolsPair) (PoolsPair, error) {
	var best PoolsPair
	var bestOutput uint64

	for _, pair := range pairs {
		output, err := pairOutputEstimate(pair, inputAmount)
		if err != nil {
			continue
		}
		if best == nil || output > bestOutput {
			best = pair
			bestOutput = output
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no pools pair can take input %d", inputAmount)
	}
	return best, nil
}

func (s *StaticService) FindBestPoolsPairForEstimatedAmount(estimatedAmount uint64, pairs []PoolsPair) (PoolsPair, error) {
	var best PoolsPair
	var bestInput uint64

	for _, pair := range pairs {
		input, err := pairInputEstimate(pair, estimatedAmount)
		if err != nil {
			continue
		}
		if best == nil || input < bestInput {
			best = pair
			bestInput = input
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no pools pair can produce output %d", estimatedAmount)
	}
	return best, nil
}

// pairOutputEstimate runs an oriented route forward with zero slippage.
func pairOutputEstimate(pair PoolsPair, inputAmount uint64) (uint64, error) {
	if !pair.IsValid() {
		return 0, fmt.Errorf("route has %d pools", len(pair))
	}
	entry := pair[0].TokenAMint
	if len(pair) == 1 {
		return pair[0].MinimumAmountOut(inputAmount, entry, 0)
	}
	intermediateAmount, err := pair[0].MinimumAmountOut(inputAmount, entry, 0)
	if err != nil {
		return 0, err
	}
	return pair[1].MinimumAmountOut(intermediateAmount, pair[1].TokenAMint, 0)
}

func pairInputEstimate(pair PoolsPair, estimatedAmount uint64) (uint64, error) {
	if !pair.IsValid() {
		return 0, fmt.Errorf("route has %d pools", len(pair))
	}
	return pair.InputAmountForEstimatedAmount(estimatedAmount, pair[0].TokenAMint, 0)
}
